package domain

import (
	"context"
	"io"
	"time"
)

// JobQueue is the durable buffer between submission and the worker pool.
// This abstracts away the specific implementation (Redis Streams in production).
type JobQueue interface {
	// Enqueue appends a job request for delivery to exactly one worker.
	Enqueue(ctx context.Context, req JobRequest) error

	// Claim blocks up to the given duration and returns new deliveries
	// addressed to the named consumer.
	Claim(ctx context.Context, consumer string, count int, block time.Duration) ([]QueuedJob, error)

	// Ack marks deliveries as fully processed so they are never redelivered.
	Ack(ctx context.Context, deliveryIDs ...string) error

	// ReclaimStale transfers deliveries idle longer than minIdle to the named
	// consumer, so jobs owned by a crashed worker run again.
	ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]QueuedJob, error)

	// Status reports queue depth and the unacknowledged delivery summary.
	Status(ctx context.Context) (*QueueStatus, error)
}

// JobRegistry is the in-process table of live job snapshots backing status
// polls. Implementations must publish immutable copies atomically; readers
// never observe a partially updated job.
type JobRegistry interface {
	// Put publishes a new snapshot for the job, replacing any previous one.
	Put(job *Job)

	// Get returns the current snapshot for a job id.
	Get(id string) (*Job, bool)

	// Delete drops a job from the registry.
	Delete(id string)

	// Sweep evicts terminal jobs whose completion is older than the given
	// age and returns how many were dropped. Status reads for evicted jobs
	// fall through to the history store.
	Sweep(olderThan time.Duration) int
}

// JobHistoryRepository is the durable store of terminal job records. It must
// survive process restarts and serialize writes per job id while leaving
// reads of other jobs unblocked.
type JobHistoryRepository interface {
	// SaveTerminal persists a terminal job row together with its full and
	// filtered change lists in one transaction.
	SaveTerminal(ctx context.Context, rec JobRecord, all, filtered []ChangeRecord) error

	// Get returns one history row, ErrNotFound when absent.
	Get(ctx context.Context, jobID string) (*JobRecord, error)

	// List returns one page sorted by creation time descending, plus the
	// total row count for the given week filter (nil means all weeks).
	List(ctx context.Context, page, limit int, week *int) ([]JobRecord, int, error)

	// Delete permanently removes a job row and its change lists. Artifact
	// files are not touched.
	Delete(ctx context.Context, jobID string) error

	// Stats summarizes the stored history.
	Stats(ctx context.Context) (*HistoryStats, error)

	// DeleteOlderThan removes terminal jobs created before the cutoff and
	// returns how many rows were dropped.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Records lazily fetches one of a job's change lists.
	Records(ctx context.Context, jobID string, filtered bool) ([]ChangeRecord, error)

	// LatestCompleted returns the most recent completed job, optionally
	// restricted to one week, ErrNotFound when there is none.
	LatestCompleted(ctx context.Context, week *int) (*JobRecord, error)
}

// FilterConfigRepository persists the single active FilterConfig slot.
type FilterConfigRepository interface {
	// Load returns the stored configuration, or defaults when none was saved.
	Load(ctx context.Context) (FilterConfig, error)

	// Save overwrites the slot. Last write wins.
	Save(ctx context.Context, cfg FilterConfig) error
}

// ContactDirectory resolves notification targets. The directory itself is
// maintained outside this system; all access here is read-only.
type ContactDirectory interface {
	// OwnerByStore returns the active contact responsible for a store,
	// ErrNotFound when the store has none.
	OwnerByStore(ctx context.Context, storeID string) (*Contact, error)

	// Oversight returns the distinct oversight email list.
	Oversight(ctx context.Context) ([]string, error)
}

// ArtifactStore writes the files generated for a completed job and serves
// them back by the opaque references stored on the job.
type ArtifactStore interface {
	// Write emits all artifacts for a job and returns their references.
	Write(ctx context.Context, jobID string, weekNum int, result JobResult) (ArtifactSet, error)

	// Open streams a stored artifact by its reference.
	Open(ctx context.Context, jobID, ref string) (io.ReadCloser, error)
}

// SubmissionJournal is the local write-ahead fallback for job submissions
// taken while the queue is unreachable.
type SubmissionJournal interface {
	// Write appends a job request to the local journal.
	Write(ctx context.Context, req JobRequest) error

	// Replay feeds journaled requests to the handler, typically to re-enqueue
	// them once the queue recovers.
	Replay(ctx context.Context, handler func(req JobRequest) error) error

	// Truncate removes journal segments that have been fully replayed.
	Truncate(ctx context.Context) error
}

// Notifier delivers one rendered notification. Transport mechanics live in
// the implementation; per-recipient failures come back as errors.
type Notifier interface {
	Notify(ctx context.Context, recipient Recipient, body string) error
}

// JobEventPublisher fans job lifecycle transitions out to live subscribers.
type JobEventPublisher interface {
	PublishJobUpdate(job *Job)
}
