package domain

import "sort"

// ComputeDiff reconciles two snapshots into one ChangeRecord per key in the
// union of both key sets. A key missing on one side contributes a count of 0,
// so a newly listed model is an Increase from 0 and a delisted one a Decrease
// to 0. Output is sorted by store, model, then channel so identical inputs
// always yield identical results. ComputeDiff is pure and never fails;
// malformed input is the loader's problem.
func ComputeDiff(previous, current *Snapshot) ([]ChangeRecord, Summary) {
	union := make(map[ChangeKey]struct{}, previous.Len()+current.Len())
	for _, k := range previous.Keys() {
		union[k] = struct{}{}
	}
	for _, k := range current.Keys() {
		union[k] = struct{}{}
	}

	records := make([]ChangeRecord, 0, len(union))
	for k := range union {
		prev := previous.Count(k)
		curr := current.Count(k)
		diff := curr - prev
		records = append(records, ChangeRecord{
			StoreID:       k.StoreID,
			ModelID:       k.ModelID,
			Channel:       k.Channel,
			PreviousCount: prev,
			CurrentCount:  curr,
			Difference:    diff,
			ChangeType:    classify(diff),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		if a.ModelID != b.ModelID {
			return a.ModelID < b.ModelID
		}
		return a.Channel < b.Channel
	})

	return records, Summarize(records)
}

func classify(difference int) ChangeType {
	switch {
	case difference > 0:
		return Increase
	case difference < 0:
		return Decrease
	default:
		return Unchanged
	}
}
