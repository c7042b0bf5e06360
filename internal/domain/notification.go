package domain

// RecipientType distinguishes the two notification audiences.
type RecipientType string

const (
	// RecipientStoreOwner targets the contact responsible for stores that
	// show at least one decrease in the filtered records.
	RecipientStoreOwner RecipientType = "store_owner"
	// RecipientOversight targets the fixed summary audience, included on
	// every send regardless of per-store matches.
	RecipientOversight RecipientType = "oversight"
)

// Recipient is a notification target derived from a completed job's filtered
// records and the contact directory. IDs are deterministic ("owner:<store>"
// or "oversight:<email>") so selective resends stay stable across calls.
type Recipient struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Email   string        `json:"email"`
	Type    RecipientType `json:"type"`
	Subject string        `json:"subject"`

	// Store-owner stats, computed over the filtered records only.
	Stores        []string `json:"stores,omitempty"`
	DecreaseCount int      `json:"decrease_count,omitempty"`

	// Oversight stats, computed over the filtered records only.
	StoresAffected  int `json:"stores_affected,omitempty"`
	ModelsDecreased int `json:"models_decreased,omitempty"`
	TotalDecrease   int `json:"total_decrease,omitempty"`
}

// NotificationPreview is the dry-run view of a send for one completed job.
// Building it never sends anything.
type NotificationPreview struct {
	JobID           string      `json:"job_id"`
	WeekNum         int         `json:"week_num"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body"`
	Recipients      []Recipient `json:"recipients"`
	StoreOwnerCount int         `json:"store_owner_count"`
	OversightCount  int         `json:"oversight_count"`
}

// SendOutcome records the per-recipient result of one send attempt.
type SendOutcome struct {
	RecipientID string `json:"recipient_id"`
	Email       string `json:"email"`
	Error       string `json:"error,omitempty"`
}

// NotificationReport aggregates per-recipient outcomes. Transport failures
// are reported individually, never collapsed into a single error.
type NotificationReport struct {
	JobID     string        `json:"job_id"`
	Requested int           `json:"requested"`
	Sent      []SendOutcome `json:"sent"`
	Failed    []SendOutcome `json:"failed"`
}
