package domain

// ChangeType classifies the sign of a week-over-week difference.
type ChangeType string

const (
	Increase  ChangeType = "Increase"
	Decrease  ChangeType = "Decrease"
	Unchanged ChangeType = "Unchanged"
)

// ChangeRecord is one row of the reconciliation result. Difference always
// equals CurrentCount - PreviousCount and ChangeType always matches its sign.
type ChangeRecord struct {
	StoreID       string     `json:"store_id"`
	ModelID       string     `json:"model_id"`
	Channel       string     `json:"channel"`
	PreviousCount int        `json:"previous_count"`
	CurrentCount  int        `json:"current_count"`
	Difference    int        `json:"difference"`
	ChangeType    ChangeType `json:"change_type"`
}

// Key returns the record's identity key.
func (r ChangeRecord) Key() ChangeKey {
	return ChangeKey{StoreID: r.StoreID, ModelID: r.ModelID, Channel: r.Channel}
}

// Summary holds the aggregate counters for one ChangeRecord list. Two exist
// per job: one over all records and one over the filtered set.
type Summary struct {
	ModelsIncreased        int `json:"models_increased"`
	ModelsDecreased        int `json:"models_decreased"`
	ModelsUnchanged        int `json:"models_unchanged"`
	StoresAffected         int `json:"stores_affected"`
	TotalDecreaseMagnitude int `json:"total_decrease_magnitude"`
}

// Summarize recomputes the aggregate counters for a record list.
// StoresAffected counts distinct stores with at least one non-zero difference.
func Summarize(records []ChangeRecord) Summary {
	var s Summary
	affected := make(map[string]struct{})
	for _, r := range records {
		switch r.ChangeType {
		case Increase:
			s.ModelsIncreased++
		case Decrease:
			s.ModelsDecreased++
			s.TotalDecreaseMagnitude += -r.Difference
		default:
			s.ModelsUnchanged++
		}
		if r.Difference != 0 {
			affected[r.StoreID] = struct{}{}
		}
	}
	s.StoresAffected = len(affected)
	return s
}
