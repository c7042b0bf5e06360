package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/V4T54L/display-watch/internal/adapter/metrics"
	"github.com/V4T54L/display-watch/internal/adapter/tabular"
	"github.com/V4T54L/display-watch/internal/domain"
)

// terminalPersistTimeout bounds the terminal write separately from the job
// budget; a timed-out job still needs its failed state recorded.
const terminalPersistTimeout = 30 * time.Second

// ProcessJobUseCase runs one claimed job through the reconciliation pipeline:
// load both snapshots, diff, filter, write artifacts, persist the terminal
// state, then acknowledge the delivery. Acknowledgement strictly follows
// persistence, so a crash at any point leaves the delivery pending and the
// job is re-run; the history upsert makes re-runs harmless.
type ProcessJobUseCase struct {
	loader    *tabular.Loader
	registry  domain.JobRegistry
	history   domain.JobHistoryRepository
	filters   domain.FilterConfigRepository
	artifacts domain.ArtifactStore
	queue     domain.JobQueue
	events    domain.JobEventPublisher
	metrics   *metrics.TrackerMetrics
	logger    *slog.Logger

	jobTimeout     time.Duration
	persistRetries int
	persistBackoff time.Duration
}

// NewProcessJobUseCase creates a new ProcessJobUseCase.
func NewProcessJobUseCase(
	loader *tabular.Loader,
	registry domain.JobRegistry,
	history domain.JobHistoryRepository,
	filters domain.FilterConfigRepository,
	artifacts domain.ArtifactStore,
	queue domain.JobQueue,
	events domain.JobEventPublisher,
	m *metrics.TrackerMetrics,
	logger *slog.Logger,
	jobTimeout time.Duration,
	persistRetries int,
	persistBackoff time.Duration,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		loader:         loader,
		registry:       registry,
		history:        history,
		filters:        filters,
		artifacts:      artifacts,
		queue:          queue,
		events:         events,
		metrics:        m,
		logger:         logger,
		jobTimeout:     jobTimeout,
		persistRetries: persistRetries,
		persistBackoff: persistBackoff,
	}
}

// Execute processes one delivery end to end. Pipeline failures become the
// job's terminal failed state and are not returned; the returned error means
// the terminal state itself could not be recorded or acknowledged, and the
// delivery stays pending for a retry.
func (uc *ProcessJobUseCase) Execute(ctx context.Context, delivery domain.QueuedJob) error {
	req := delivery.Request

	// A redelivery of an already recorded job only needs its ack repeated.
	if rec, err := uc.history.Get(ctx, req.JobID); err == nil && rec.Status.Terminal() {
		uc.logger.Info("job already recorded, acknowledging redelivery", "job_id", req.JobID)
		return uc.queue.Ack(ctx, delivery.DeliveryID)
	}

	state := uc.lookupOrRebuild(req)
	jobCtx, cancel := context.WithTimeout(ctx, uc.jobTimeout)
	defer cancel()

	state.Status = domain.JobProcessing
	uc.publish(state)

	result, err := uc.runPipeline(jobCtx, &state, req)
	if err != nil {
		return uc.finishFailed(state, delivery, err)
	}
	return uc.finishCompleted(state, delivery, result)
}

func (uc *ProcessJobUseCase) lookupOrRebuild(req domain.JobRequest) domain.Job {
	if job, ok := uc.registry.Get(req.JobID); ok {
		return *job
	}
	// Registry state is lost on restart; rebuild the live view from the request.
	return domain.Job{
		ID:        req.JobID,
		WeekNum:   req.WeekNum,
		Status:    domain.JobPending,
		CreatedAt: req.SubmittedAt,
	}
}

func (uc *ProcessJobUseCase) runPipeline(ctx context.Context, state *domain.Job, req domain.JobRequest) (*domain.JobResult, error) {
	// 1. Load both snapshots
	start := time.Now()
	previous, err := uc.loader.LoadSnapshot(ctx, req.PreviousFile)
	if err != nil {
		return nil, stageError("load", err)
	}
	current, err := uc.loader.LoadSnapshot(ctx, req.CurrentFile)
	if err != nil {
		return nil, stageError("load", err)
	}
	uc.observeStage("load", start)
	uc.advance(state, 10)

	// 2. Reconcile week over week
	if err := ctx.Err(); err != nil {
		return nil, stageError("diff", err)
	}
	start = time.Now()
	records, summary := domain.ComputeDiff(previous, current)
	uc.observeStage("diff", start)
	uc.advance(state, 40)

	// 3. Apply the active filter configuration
	if err := ctx.Err(); err != nil {
		return nil, stageError("filter", err)
	}
	start = time.Now()
	cfg, err := uc.filters.Load(ctx)
	if err != nil {
		return nil, stageError("filter", err)
	}
	filtered := domain.ApplyFilters(records, cfg)
	filteredSummary := domain.Summarize(filtered)
	uc.observeStage("filter", start)
	uc.advance(state, 60)

	if uc.metrics != nil {
		uc.metrics.RecordsTotal.WithLabelValues("kept").Add(float64(len(filtered)))
		uc.metrics.RecordsTotal.WithLabelValues("hidden").Add(float64(len(records) - len(filtered)))
	}

	result := &domain.JobResult{
		AllRecords:      records,
		FilteredRecords: filtered,
		Summary:         summary,
		FilteredSummary: filteredSummary,
	}

	// 4. Write the report artifacts
	if err := ctx.Err(); err != nil {
		return nil, stageError("artifacts", err)
	}
	start = time.Now()
	artifacts, err := uc.artifacts.Write(ctx, state.ID, state.WeekNum, *result)
	if err != nil {
		return nil, stageError("artifacts", err)
	}
	result.Artifacts = artifacts
	uc.observeStage("artifacts", start)
	uc.advance(state, 90)

	return result, nil
}

func (uc *ProcessJobUseCase) finishCompleted(state domain.Job, delivery domain.QueuedJob, result *domain.JobResult) error {
	now := time.Now().UTC()
	state.Status = domain.JobCompleted
	state.Progress = 100
	state.CompletedAt = &now
	state.Error = ""
	state.Result = result

	// The job context may already be near its deadline; the terminal write
	// gets its own budget.
	persistCtx, cancel := context.WithTimeout(context.Background(), terminalPersistTimeout)
	defer cancel()

	start := time.Now()
	rec := state.Record()
	if err := uc.writeWithRetry(persistCtx, rec, result.AllRecords, result.FilteredRecords); err != nil {
		uc.logger.Error("failed to persist completed job, leaving delivery pending", "job_id", state.ID, "error", err)
		return err
	}
	uc.observeStage("persist", start)

	uc.publish(state)
	if uc.metrics != nil {
		uc.metrics.JobsFinished.WithLabelValues(string(domain.JobCompleted)).Inc()
	}

	if err := uc.queue.Ack(persistCtx, delivery.DeliveryID); err != nil {
		uc.logger.Error("failed to acknowledge delivery for recorded job", "job_id", state.ID, "error", err)
		return err
	}

	uc.logger.Info("job completed", "job_id", state.ID, "week_num", state.WeekNum,
		"records", len(result.AllRecords), "filtered", len(result.FilteredRecords))
	return nil
}

func (uc *ProcessJobUseCase) finishFailed(state domain.Job, delivery domain.QueuedJob, pipelineErr error) error {
	now := time.Now().UTC()
	state.Status = domain.JobFailed
	state.CompletedAt = &now
	state.Error = pipelineErr.Error()

	persistCtx, cancel := context.WithTimeout(context.Background(), terminalPersistTimeout)
	defer cancel()

	rec := state.Record()
	if err := uc.writeWithRetry(persistCtx, rec, nil, nil); err != nil {
		uc.logger.Error("failed to persist failed job, leaving delivery pending", "job_id", state.ID, "error", err)
		return err
	}

	uc.publish(state)
	if uc.metrics != nil {
		uc.metrics.JobsFinished.WithLabelValues(string(domain.JobFailed)).Inc()
	}

	if err := uc.queue.Ack(persistCtx, delivery.DeliveryID); err != nil {
		uc.logger.Error("failed to acknowledge delivery for recorded job", "job_id", state.ID, "error", err)
		return err
	}

	uc.logger.Warn("job failed", "job_id", state.ID, "week_num", state.WeekNum, "error", state.Error)
	return nil
}

// publish stores and broadcasts a fresh immutable snapshot of the job.
// Readers hold whole snapshots, never fields of a struct still being written.
func (uc *ProcessJobUseCase) publish(state domain.Job) {
	snapshot := state
	uc.registry.Put(&snapshot)
	uc.events.PublishJobUpdate(&snapshot)
}

func (uc *ProcessJobUseCase) advance(state *domain.Job, progress int) {
	state.Progress = progress
	uc.publish(*state)
}

func (uc *ProcessJobUseCase) observeStage(stage string, start time.Time) {
	if uc.metrics != nil {
		uc.metrics.JobStageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (uc *ProcessJobUseCase) writeWithRetry(ctx context.Context, rec domain.JobRecord, all, filtered []domain.ChangeRecord) error {
	var lastErr error
	for i := 0; i < uc.persistRetries; i++ {
		err := uc.history.SaveTerminal(ctx, rec, all, filtered)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to persist terminal job, retrying...", "attempt", i+1, "job_id", rec.JobID, "error", err)
		select {
		case <-time.After(uc.persistBackoff):
			// continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// stageError tags a failure with the stage it happened in. Deadline
// expirations surface as the timeout sentinel so the recorded message names
// the budget, not the stage internals.
func stageError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = domain.ErrTimeout
	}
	return &domain.PipelineError{Stage: stage, Err: err}
}
