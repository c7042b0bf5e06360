package domain

// QueuedJob pairs a dequeued job request with its stream delivery id, which
// the worker acknowledges after the terminal state is persisted.
type QueuedJob struct {
	DeliveryID string     `json:"delivery_id"`
	Request    JobRequest `json:"request"`
}

// QueuePending summarizes deliveries claimed but not yet acknowledged.
type QueuePending struct {
	Total           int64            `json:"total"`
	FirstDeliveryID string           `json:"first_delivery_id,omitempty"`
	LastDeliveryID  string           `json:"last_delivery_id,omitempty"`
	ConsumerTotals  map[string]int64 `json:"consumer_totals,omitempty"`
}

// QueueStatus is the ops view of the job queue.
type QueueStatus struct {
	Depth   int64         `json:"depth"`
	Pending *QueuePending `json:"pending,omitempty"`
}
