package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/display-watch/internal/adapter/metrics"
	"github.com/V4T54L/display-watch/internal/adapter/tabular"
	"github.com/V4T54L/display-watch/internal/domain"
)

const (
	minWeekNum = 1
	maxWeekNum = 53
)

// SubmitJobUseCase validates a reconciliation request, registers the pending
// job, and hands it to the queue. Execution happens later on the worker pool;
// submit never blocks on it.
type SubmitJobUseCase struct {
	queue    domain.JobQueue
	registry domain.JobRegistry
	events   domain.JobEventPublisher
	loader   *tabular.Loader
	metrics  *metrics.TrackerMetrics
	logger   *slog.Logger
}

// NewSubmitJobUseCase creates a new SubmitJobUseCase.
func NewSubmitJobUseCase(queue domain.JobQueue, registry domain.JobRegistry, events domain.JobEventPublisher, loader *tabular.Loader, m *metrics.TrackerMetrics, logger *slog.Logger) *SubmitJobUseCase {
	return &SubmitJobUseCase{
		queue:    queue,
		registry: registry,
		events:   events,
		loader:   loader,
		metrics:  m,
		logger:   logger,
	}
}

// Submit accepts a job request, or rejects it with a ValidationError before
// anything is queued. On success the returned job is already visible to
// status polls in the pending state.
func (uc *SubmitJobUseCase) Submit(ctx context.Context, weekNum int, previousFile, currentFile string) (*domain.Job, error) {
	// 1. Validate the request before any state changes
	if weekNum < minWeekNum || weekNum > maxWeekNum {
		return nil, &domain.ValidationError{Field: "week_num", Reason: fmt.Sprintf("must be between %d and %d", minWeekNum, maxWeekNum)}
	}
	if err := uc.loader.Stat(previousFile, "previous_file"); err != nil {
		return nil, err
	}
	if err := uc.loader.Stat(currentFile, "current_file"); err != nil {
		return nil, err
	}

	// 2. Register the pending job so status polls see it immediately
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		WeekNum:   weekNum,
		Status:    domain.JobPending,
		Progress:  0,
		CreatedAt: now,
	}
	uc.registry.Put(job)

	// 3. Queue the request for the worker pool
	req := domain.JobRequest{
		JobID:        job.ID,
		WeekNum:      weekNum,
		PreviousFile: previousFile,
		CurrentFile:  currentFile,
		SubmittedAt:  now,
	}
	if err := uc.queue.Enqueue(ctx, req); err != nil {
		uc.registry.Delete(job.ID)
		uc.logger.Error("failed to enqueue job", "job_id", job.ID, "error", err)
		return nil, fmt.Errorf("enqueuing job: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.JobsSubmitted.Inc()
	}
	uc.events.PublishJobUpdate(job)
	uc.logger.Info("job submitted", "job_id", job.ID, "week_num", weekNum,
		"previous_file", previousFile, "current_file", currentFile)
	return job, nil
}
