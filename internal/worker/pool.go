// Package worker runs the bounded pool that drains the job queue. Each
// worker owns one delivery at a time; stale deliveries abandoned by crashed
// workers are periodically reclaimed and re-run.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/display-watch/internal/domain"
)

// Executor runs one claimed delivery to its terminal state. The pipeline
// usecase satisfies this; the pool never looks inside a job.
type Executor interface {
	Execute(ctx context.Context, delivery domain.QueuedJob) error
}

const reclaimBatch = 10

// PoolConfig tunes the pool. Zero values fall back to defaults.
type PoolConfig struct {
	// Workers is the number of concurrent job executions.
	Workers int
	// ClaimBlock is how long one claim call blocks waiting for a delivery.
	ClaimBlock time.Duration
	// IdleWait is the pause after an empty or failed claim.
	IdleWait time.Duration
	// ReclaimEvery is the janitor interval for stale-delivery reclaims,
	// registry sweeps and queue depth refreshes.
	ReclaimEvery time.Duration
	// StaleAfter is the pending idle time after which a delivery is assumed
	// abandoned. It should exceed the job budget, or the janitor would steal
	// deliveries from workers that are still running.
	StaleAfter time.Duration
	// RegistryRetention is how long terminal snapshots stay in the live
	// registry before status reads fall through to the history store.
	RegistryRetention time.Duration
}

func (c *PoolConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.ClaimBlock <= 0 {
		c.ClaimBlock = 5 * time.Second
	}
	if c.IdleWait <= 0 {
		c.IdleWait = time.Second
	}
	if c.ReclaimEvery <= 0 {
		c.ReclaimEvery = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Minute
	}
	if c.RegistryRetention <= 0 {
		c.RegistryRetention = time.Hour
	}
}

// Pool consumes the job queue with a fixed number of workers plus one
// janitor goroutine for reclaims and registry sweeps.
type Pool struct {
	queue    domain.JobQueue
	registry domain.JobRegistry
	exec     Executor
	logger   *slog.Logger
	cfg      PoolConfig

	// Consumer names are unique per process so pending-entry ownership in
	// the stream group stays attributable after restarts.
	instance string

	wg sync.WaitGroup
}

// NewPool creates a Pool. Start must be called before it does anything.
func NewPool(queue domain.JobQueue, registry domain.JobRegistry, exec Executor, logger *slog.Logger, cfg PoolConfig) *Pool {
	cfg.applyDefaults()
	return &Pool{
		queue:    queue,
		registry: registry,
		exec:     exec,
		logger:   logger.With("component", "worker_pool"),
		cfg:      cfg,
		instance: uuid.NewString()[:8],
	}
}

// Start launches the workers and the janitor. They all stop when ctx is
// canceled; Wait blocks until the last one has drained.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting worker pool", "workers", p.cfg.Workers, "instance", p.instance)
	for i := 0; i < p.cfg.Workers; i++ {
		name := fmt.Sprintf("worker-%s-%d", p.instance, i)
		p.wg.Add(1)
		go p.runWorker(ctx, name)
	}
	p.wg.Add(1)
	go p.runJanitor(ctx)
}

// Wait blocks until every goroutine started by Start has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, name string) {
	defer p.wg.Done()
	p.logger.Info("worker started", "consumer", name)

	for {
		if ctx.Err() != nil {
			p.logger.Info("worker stopped", "consumer", name)
			return
		}

		deliveries, err := p.queue.Claim(ctx, name, 1, p.cfg.ClaimBlock)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("worker stopped", "consumer", name)
				return
			}
			p.logger.Error("failed to claim from queue", "consumer", name, "error", err)
			if !p.pause(ctx) {
				return
			}
			continue
		}
		if len(deliveries) == 0 {
			if !p.pause(ctx) {
				return
			}
			continue
		}

		for _, delivery := range deliveries {
			p.execute(ctx, delivery)
		}
	}
}

// runJanitor periodically reclaims abandoned deliveries, evicts aged
// terminal snapshots from the registry and refreshes the queue depth.
func (p *Pool) runJanitor(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ReclaimEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reclaimStale(ctx)
			if evicted := p.registry.Sweep(p.cfg.RegistryRetention); evicted > 0 {
				p.logger.Info("evicted terminal jobs from registry", "count", evicted)
			}
			if _, err := p.queue.Status(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("failed to refresh queue status", "error", err)
			}
		}
	}
}

func (p *Pool) reclaimStale(ctx context.Context) {
	consumer := fmt.Sprintf("worker-%s-reclaim", p.instance)
	deliveries, err := p.queue.ReclaimStale(ctx, consumer, p.cfg.StaleAfter, reclaimBatch)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("failed to reclaim stale deliveries", "error", err)
		}
		return
	}
	if len(deliveries) == 0 {
		return
	}

	p.logger.Warn("re-running stale deliveries", "count", len(deliveries))
	for _, delivery := range deliveries {
		p.execute(ctx, delivery)
	}
}

func (p *Pool) execute(ctx context.Context, delivery domain.QueuedJob) {
	if err := p.exec.Execute(ctx, delivery); err != nil {
		// The delivery stays pending and will be reclaimed after StaleAfter.
		p.logger.Error("job execution left delivery pending",
			"job_id", delivery.Request.JobID, "delivery_id", delivery.DeliveryID, "error", err)
	}
}

// pause sleeps for the idle interval, returning false when ctx ended first.
func (p *Pool) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.cfg.IdleWait):
		return true
	}
}
