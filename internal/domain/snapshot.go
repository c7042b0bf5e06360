package domain

// DefaultChannel is assigned to rows whose source file carries no channel column.
const DefaultChannel = "default"

// ChangeKey identifies one (store, model, channel) combination across snapshots.
type ChangeKey struct {
	StoreID string `json:"store_id"`
	ModelID string `json:"model_id"`
	Channel string `json:"channel"`
}

// SnapshotRow is a single validated input row before aggregation.
type SnapshotRow struct {
	Key   ChangeKey
	Count int
}

// Snapshot is one file's worth of per-store, per-model display counts.
// Duplicate keys are summed at construction time, never overwritten.
// A Snapshot is immutable once built and owned by the diff that consumes it.
type Snapshot struct {
	counts map[ChangeKey]int
	keys   []ChangeKey
}

// NewSnapshot aggregates validated rows into a Snapshot, summing duplicates.
// Key order follows first appearance in the input.
func NewSnapshot(rows []SnapshotRow) *Snapshot {
	s := &Snapshot{counts: make(map[ChangeKey]int, len(rows))}
	for _, r := range rows {
		if _, seen := s.counts[r.Key]; !seen {
			s.keys = append(s.keys, r.Key)
		}
		s.counts[r.Key] += r.Count
	}
	return s
}

// Count returns the aggregated count for a key, 0 when the key is absent.
func (s *Snapshot) Count(key ChangeKey) int {
	return s.counts[key]
}

// Keys returns the distinct keys in first-seen order. Callers must not
// modify the returned slice.
func (s *Snapshot) Keys() []ChangeKey {
	return s.keys
}

// Len returns the number of distinct keys.
func (s *Snapshot) Len() int {
	return len(s.counts)
}
