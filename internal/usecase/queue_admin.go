package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
)

// QueueAdminUseCase provides operational views of the job queue.
type QueueAdminUseCase struct {
	queue  domain.JobQueue
	logger *slog.Logger
}

// NewQueueAdminUseCase creates a new QueueAdminUseCase.
func NewQueueAdminUseCase(queue domain.JobQueue, logger *slog.Logger) *QueueAdminUseCase {
	return &QueueAdminUseCase{queue: queue, logger: logger}
}

// Status reports queue depth and the pending-delivery summary.
func (uc *QueueAdminUseCase) Status(ctx context.Context) (*domain.QueueStatus, error) {
	return uc.queue.Status(ctx)
}

// Claim transfers stale pending deliveries to the named consumer so they run
// again. Zero values fall back to operational defaults.
func (uc *QueueAdminUseCase) Claim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]domain.QueuedJob, error) {
	if consumer == "" {
		consumer = "admin-reclaim"
	}
	if minIdle <= 0 {
		minIdle = time.Minute
	}
	if count <= 0 {
		count = 10
	}
	claimed, err := uc.queue.ReclaimStale(ctx, consumer, minIdle, count)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		uc.logger.Info("reclaimed stale deliveries", "consumer", consumer, "count", len(claimed))
	}
	return claimed, nil
}
