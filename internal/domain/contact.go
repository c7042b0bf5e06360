package domain

// Contact is one row of the externally managed store directory. The service
// only reads it; directory maintenance happens outside this system.
type Contact struct {
	StoreID    string `json:"store_id"`
	StoreName  string `json:"store_name,omitempty"`
	Channel    string `json:"channel,omitempty"`
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
	Active     bool   `json:"active"`
}
