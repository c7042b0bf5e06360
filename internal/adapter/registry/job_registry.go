// Package registry keeps the live job snapshots that back status polls.
// Each Put replaces the whole snapshot pointer, so readers either see the
// previous version or the new one, never a half-written job. Writers must
// treat published jobs as frozen and publish fresh copies instead of
// mutating in place.
package registry

import (
	"sync"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
)

// JobRegistry is an in-memory table of job id to latest snapshot.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*domain.Job)}
}

// Put publishes a snapshot, replacing any previous one for the same id.
func (r *JobRegistry) Put(job *domain.Job) {
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
}

// Get returns the current snapshot for a job id.
func (r *JobRegistry) Get(id string) (*domain.Job, bool) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	return job, ok
}

// Delete drops a job from the registry.
func (r *JobRegistry) Delete(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// Sweep evicts terminal jobs that completed longer than olderThan ago and
// returns how many were dropped. Live jobs are never evicted; terminal jobs
// remain readable through the history store after eviction.
func (r *JobRegistry) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, job := range r.jobs {
		if !job.Status.Terminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked jobs.
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
