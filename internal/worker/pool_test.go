package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/V4T54L/display-watch/internal/adapter/registry"
	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/domain/mocks"
)

// recordingExecutor signals every execution on a channel so tests can wait
// without polling.
type recordingExecutor struct {
	mu   sync.Mutex
	ids  []string
	done chan string
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{done: make(chan string, 16)}
}

func (e *recordingExecutor) Execute(ctx context.Context, delivery domain.QueuedJob) error {
	e.mu.Lock()
	e.ids = append(e.ids, delivery.Request.JobID)
	e.mu.Unlock()
	e.done <- delivery.Request.JobID
	return nil
}

func waitForExecutions(t *testing.T, exec *recordingExecutor, want int) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for i := 0; i < want; i++ {
		select {
		case <-exec.done:
		case <-timeout:
			t.Fatalf("timed out waiting for execution %d of %d", i+1, want)
		}
	}
}

func testPool(queue *mocks.MockJobQueue, reg *registry.JobRegistry, exec Executor, cfg PoolConfig) *Pool {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPool(queue, reg, exec, logger, cfg)
}

func TestPool_ExecutesClaimedDeliveries(t *testing.T) {
	queue := &mocks.MockJobQueue{
		ClaimResult: []domain.QueuedJob{
			{DeliveryID: "1-0", Request: domain.JobRequest{JobID: "job-1", WeekNum: 23}},
			{DeliveryID: "1-1", Request: domain.JobRequest{JobID: "job-2", WeekNum: 23}},
		},
	}
	exec := newRecordingExecutor()
	pool := testPool(queue, registry.NewJobRegistry(), exec, PoolConfig{
		Workers:      2,
		IdleWait:     5 * time.Millisecond,
		ReclaimEvery: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	waitForExecutions(t, exec, 2)
	cancel()
	pool.Wait()

	if len(exec.ids) != 2 {
		t.Fatalf("expected 2 executed jobs, got %d", len(exec.ids))
	}
}

func TestPool_ReRunsReclaimedDeliveries(t *testing.T) {
	queue := &mocks.MockJobQueue{
		Reclaimed: []domain.QueuedJob{
			{DeliveryID: "2-0", Request: domain.JobRequest{JobID: "stale-job", WeekNum: 22}},
		},
	}
	exec := newRecordingExecutor()
	pool := testPool(queue, registry.NewJobRegistry(), exec, PoolConfig{
		Workers:      1,
		IdleWait:     5 * time.Millisecond,
		ReclaimEvery: 10 * time.Millisecond,
		StaleAfter:   time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	waitForExecutions(t, exec, 1)
	cancel()
	pool.Wait()

	if exec.ids[0] != "stale-job" {
		t.Errorf("expected the reclaimed job executed, got %v", exec.ids)
	}
}

func TestPool_JanitorSweepsRegistry(t *testing.T) {
	reg := registry.NewJobRegistry()
	old := time.Now().UTC().Add(-2 * time.Hour)
	reg.Put(&domain.Job{ID: "done-job", Status: domain.JobCompleted, Progress: 100, CompletedAt: &old})

	pool := testPool(&mocks.MockJobQueue{}, reg, newRecordingExecutor(), PoolConfig{
		Workers:           1,
		IdleWait:          5 * time.Millisecond,
		ReclaimEvery:      10 * time.Millisecond,
		RegistryRetention: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := reg.Get("done-job"); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the registry sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	pool.Wait()
}

func TestPool_StopsOnContextCancel(t *testing.T) {
	pool := testPool(&mocks.MockJobQueue{}, registry.NewJobRegistry(), newRecordingExecutor(), PoolConfig{
		Workers:  3,
		IdleWait: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after context cancellation")
	}
}
