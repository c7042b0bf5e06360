package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultCleanupDays  = 90
)

// JobHistoryUseCase serves job state and recorded results. Live jobs come
// from the in-process registry; terminal jobs survive in the history store
// and are rebuilt from it after the registry evicts them.
type JobHistoryUseCase struct {
	history   domain.JobHistoryRepository
	registry  domain.JobRegistry
	artifacts domain.ArtifactStore
	logger    *slog.Logger
}

// NewJobHistoryUseCase creates a new JobHistoryUseCase.
func NewJobHistoryUseCase(history domain.JobHistoryRepository, registry domain.JobRegistry, artifacts domain.ArtifactStore, logger *slog.Logger) *JobHistoryUseCase {
	return &JobHistoryUseCase{
		history:   history,
		registry:  registry,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Status returns the current view of a job: the live registry snapshot when
// one exists, otherwise the recorded terminal state.
func (uc *JobHistoryUseCase) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	if job, ok := uc.registry.Get(jobID); ok {
		return job, nil
	}
	rec, err := uc.history.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return jobFromRecord(rec), nil
}

// Result returns the job with its full result attached. ErrNotReady while
// the job is still pending or processing; failed jobs come back with their
// recorded error and no result.
func (uc *JobHistoryUseCase) Result(ctx context.Context, jobID string) (*domain.Job, error) {
	if job, ok := uc.registry.Get(jobID); ok {
		if !job.Status.Terminal() {
			return nil, domain.ErrNotReady
		}
		if job.Status == domain.JobCompleted && job.Result != nil {
			return job, nil
		}
		if job.Status == domain.JobFailed {
			return job, nil
		}
	}

	rec, err := uc.history.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job := jobFromRecord(rec)
	if rec.Status != domain.JobCompleted {
		return job, nil
	}

	// Rebuild the result lazily from the stored change lists.
	all, err := uc.history.Records(ctx, jobID, false)
	if err != nil {
		return nil, fmt.Errorf("loading recorded changes: %w", err)
	}
	filtered, err := uc.history.Records(ctx, jobID, true)
	if err != nil {
		return nil, fmt.Errorf("loading recorded filtered changes: %w", err)
	}
	job.Result = &domain.JobResult{
		AllRecords:      all,
		FilteredRecords: filtered,
		Summary:         rec.Summary,
		FilteredSummary: rec.FilteredSummary,
		Artifacts:       rec.Artifacts,
	}
	return job, nil
}

// List returns one page of history rows plus the total count for the same
// week filter. Page and limit are clamped to sane bounds.
func (uc *JobHistoryUseCase) List(ctx context.Context, page, limit int, week *int) ([]domain.JobRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return uc.history.List(ctx, page, limit, week)
}

// Get returns one stored history row.
func (uc *JobHistoryUseCase) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return uc.history.Get(ctx, jobID)
}

// Delete permanently removes a job from history and from the live registry.
// Artifact files on disk are left alone.
func (uc *JobHistoryUseCase) Delete(ctx context.Context, jobID string) error {
	if err := uc.history.Delete(ctx, jobID); err != nil {
		return err
	}
	uc.registry.Delete(jobID)
	uc.logger.Info("job deleted from history", "job_id", jobID)
	return nil
}

// Stats summarizes the stored history.
func (uc *JobHistoryUseCase) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	return uc.history.Stats(ctx)
}

// Records fetches one of a job's stored change lists. Set selects the list:
// "filtered" (default) or "unfiltered".
func (uc *JobHistoryUseCase) Records(ctx context.Context, jobID, set string) ([]domain.ChangeRecord, error) {
	var filtered bool
	switch set {
	case "", "filtered":
		filtered = true
	case "unfiltered":
		filtered = false
	default:
		return nil, &domain.ValidationError{Field: "set", Reason: `must be "filtered" or "unfiltered"`}
	}
	return uc.history.Records(ctx, jobID, filtered)
}

// Cleanup deletes terminal jobs older than the given number of days and
// reports how many went away. Days at or below zero fall back to the default
// retention window.
func (uc *JobHistoryUseCase) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = defaultCleanupDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := uc.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("history cleanup completed", "days", days, "deleted", deleted)
	return deleted, nil
}

// OpenArtifact streams one stored artifact of a job. The second return value
// is the artifact's file name, for the download disposition header.
func (uc *JobHistoryUseCase) OpenArtifact(ctx context.Context, jobID, kind string) (io.ReadCloser, string, error) {
	rec, err := uc.history.Get(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	ref, ok := rec.Artifacts.ByKind(kind)
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	rc, err := uc.artifacts.Open(ctx, jobID, ref)
	if err != nil {
		return nil, "", err
	}
	return rc, ref, nil
}

func jobFromRecord(rec *domain.JobRecord) *domain.Job {
	job := &domain.Job{
		ID:          rec.JobID,
		WeekNum:     rec.WeekNum,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
		Error:       rec.Error,
	}
	if rec.Status == domain.JobCompleted {
		job.Progress = 100
	}
	return job
}
