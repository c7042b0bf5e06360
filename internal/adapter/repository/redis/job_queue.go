// Package redis implements the job queue on Redis Streams. Submissions are
// appended with XADD, workers claim them through a consumer group, and
// acknowledgements happen only after the terminal job state is persisted, so
// a crashed worker's jobs stay pending and can be reclaimed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/display-watch/internal/adapter/metrics"
	"github.com/V4T54L/display-watch/internal/domain"
)

// JobQueue is the Redis Streams implementation of domain.JobQueue. When
// Redis is unreachable, submissions fall back to the local journal and are
// replayed once the connection recovers, keeping submit available.
type JobQueue struct {
	client      *redis.Client
	logger      *slog.Logger
	journal     domain.SubmissionJournal
	stream      string
	group       string
	metrics     *metrics.TrackerMetrics
	isAvailable atomic.Bool
}

// NewJobQueue creates the queue and its consumer group. The journal is
// optional; without one, submissions fail while Redis is down.
func NewJobQueue(client *redis.Client, logger *slog.Logger, stream, group string, journal domain.SubmissionJournal, m *metrics.TrackerMetrics) (*JobQueue, error) {
	q := &JobQueue{
		client:  client,
		logger:  logger.With("component", "job_queue"),
		journal: journal,
		stream:  stream,
		group:   group,
		metrics: m,
	}
	q.isAvailable.Store(true)

	if err := q.setupConsumerGroup(context.Background()); err != nil {
		q.isAvailable.Store(false)
		q.setJournalGauge(1)
		q.logger.Error("failed to setup consumer group, Redis may be unavailable on startup", "error", err)
	}

	return q, nil
}

func (q *JobQueue) setJournalGauge(v float64) {
	if q.metrics != nil {
		q.metrics.JournalActive.Set(v)
	}
}

func (q *JobQueue) setupConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// StartHealthCheck monitors connectivity and replays the journal once Redis
// recovers. It blocks until the context is cancelled.
func (q *JobQueue) StartHealthCheck(ctx context.Context, interval time.Duration) {
	if q.journal == nil {
		q.logger.Info("submission journal not configured, skipping health check")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	q.logger.Info("starting queue health check and journal replayer")

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("stopping queue health check")
			return
		case <-ticker.C:
			if err := q.client.Ping(ctx).Err(); err != nil {
				if q.isAvailable.CompareAndSwap(true, false) {
					q.setJournalGauge(1)
					q.logger.Error("redis connection lost", "error", err)
				}
				continue
			}
			if q.isAvailable.CompareAndSwap(false, true) {
				q.logger.Info("redis connection recovered")
				if err := q.setupConsumerGroup(ctx); err != nil {
					q.logger.Error("failed to recreate consumer group", "error", err)
				}
				if err := q.ReplayJournal(ctx); err != nil {
					q.logger.Error("failed to replay journal after recovery", "error", err)
					q.isAvailable.Store(false)
					continue
				}
				q.setJournalGauge(0)
			}
		}
	}
}

// ReplayJournal re-enqueues journaled submissions and truncates the journal
// once every entry landed in Redis.
func (q *JobQueue) ReplayJournal(ctx context.Context) error {
	if q.journal == nil {
		return nil
	}

	handler := func(req domain.JobRequest) error {
		return q.enqueueToRedis(ctx, req)
	}
	if err := q.journal.Replay(ctx, handler); err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}
	if err := q.journal.Truncate(ctx); err != nil {
		return fmt.Errorf("truncating journal after replay: %w", err)
	}

	q.logger.Info("journal replay completed")
	return nil
}

// Enqueue appends a job request to the stream, or journals it while Redis
// is unavailable.
func (q *JobQueue) Enqueue(ctx context.Context, req domain.JobRequest) error {
	if !q.isAvailable.Load() {
		if q.journal == nil {
			return errors.New("queue is unavailable and no journal is configured")
		}
		q.logger.Warn("queue unavailable, journaling submission", "job_id", req.JobID)
		return q.journalSubmission(ctx, req)
	}

	err := q.enqueueToRedis(ctx, req)
	if err != nil {
		if isNetworkError(err) {
			if q.isAvailable.CompareAndSwap(true, false) {
				q.setJournalGauge(1)
				q.logger.Error("redis connection lost during enqueue", "error", err)
			}
			if q.journal == nil {
				return fmt.Errorf("queue became unavailable and no journal is configured: %w", err)
			}
			q.logger.Warn("queue became unavailable, journaling submission", "job_id", req.JobID)
			return q.journalSubmission(ctx, req)
		}
		return err
	}
	return nil
}

func (q *JobQueue) journalSubmission(ctx context.Context, req domain.JobRequest) error {
	if err := q.journal.Write(ctx, req); err != nil {
		return err
	}
	if q.metrics != nil {
		q.metrics.JournaledJobs.Inc()
	}
	return nil
}

func (q *JobQueue) enqueueToRedis(ctx context.Context, req domain.JobRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling job request: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("XADD to job stream: %w", err)
	}
	return nil
}

// Claim blocks up to the given duration and returns new deliveries for the
// named consumer.
func (q *JobQueue) Claim(ctx context.Context, consumer string, count int, block time.Duration) ([]domain.QueuedJob, error) {
	args := &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count),
		Block:    block,
	}

	streams, err := q.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("XREADGROUP from job stream: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}

	return q.decodeMessages(streams[0].Messages), nil
}

// Ack marks deliveries as processed so they are never redelivered.
func (q *JobQueue) Ack(ctx context.Context, deliveryIDs ...string) error {
	if len(deliveryIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, deliveryIDs...).Err(); err != nil {
		return fmt.Errorf("XACK job deliveries: %w", err)
	}
	return nil
}

// ReclaimStale transfers deliveries idle longer than minIdle to the named
// consumer. Jobs whose worker died mid-run come back through here.
func (q *JobQueue) ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]domain.QueuedJob, error) {
	args := &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}

	messages, _, err := q.client.XAutoClaim(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("XAUTOCLAIM stale deliveries: %w", err)
	}

	return q.decodeMessages(messages), nil
}

// Status reports stream depth and the pending-delivery summary.
func (q *JobQueue) Status(ctx context.Context) (*domain.QueueStatus, error) {
	depth, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("XLEN job stream: %w", err)
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(depth))
	}

	status := &domain.QueueStatus{Depth: depth}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		if isNoGroupError(err) {
			return status, nil
		}
		return nil, fmt.Errorf("XPENDING job stream: %w", err)
	}
	status.Pending = &domain.QueuePending{
		Total:           pending.Count,
		FirstDeliveryID: pending.Lower,
		LastDeliveryID:  pending.Higher,
		ConsumerTotals:  pending.Consumers,
	}
	return status, nil
}

func (q *JobQueue) decodeMessages(messages []redis.XMessage) []domain.QueuedJob {
	jobs := make([]domain.QueuedJob, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			q.logger.Warn("invalid message format in stream, skipping", "delivery_id", msg.ID)
			continue
		}
		var req domain.JobRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			q.logger.Warn("failed to unmarshal job request, skipping", "delivery_id", msg.ID, "error", err)
			continue
		}
		jobs = append(jobs, domain.QueuedJob{DeliveryID: msg.ID, Request: req})
	}
	return jobs
}

func isBusyGroupError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isNoGroupError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOGROUP")
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
