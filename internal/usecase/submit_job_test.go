package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/V4T54L/display-watch/internal/adapter/registry"
	"github.com/V4T54L/display-watch/internal/adapter/tabular"
	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/domain/mocks"
)

const (
	previousCSV = "store_id,model_id,channel,count\nS001,M-100,retail,10\nS001,M-200,retail,5\nS002,M-100,online,4\n"
	currentCSV  = "store_id,model_id,channel,count\nS001,M-100,retail,7\nS001,M-200,retail,5\nS002,M-100,online,6\n"
)

func writeInputFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing input file %s: %v", name, err)
	}
}

func TestSubmitJobUseCase_Submit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	writeInputFile(t, dir, "week22.csv", previousCSV)
	writeInputFile(t, dir, "week23.csv", currentCSV)
	loader := tabular.NewLoader(dir, logger)

	t.Run("Successful Submission", func(t *testing.T) {
		queue := &mocks.MockJobQueue{}
		reg := registry.NewJobRegistry()
		events := &mocks.MockJobEventPublisher{}
		uc := NewSubmitJobUseCase(queue, reg, events, loader, nil, logger)

		job, err := uc.Submit(context.Background(), 23, "week22.csv", "week23.csv")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.ID == "" {
			t.Error("expected a generated job id")
		}
		if job.Status != domain.JobPending {
			t.Errorf("expected status %q, got %q", domain.JobPending, job.Status)
		}
		if _, ok := reg.Get(job.ID); !ok {
			t.Error("expected the pending job to be visible in the registry")
		}
		if queue.EnqueuedCount() != 1 {
			t.Fatalf("expected 1 enqueued request, got %d", queue.EnqueuedCount())
		}
		if queue.Enqueued[0].JobID != job.ID {
			t.Errorf("expected enqueued request for job %s, got %s", job.ID, queue.Enqueued[0].JobID)
		}
		if queue.Enqueued[0].PreviousFile != "week22.csv" || queue.Enqueued[0].CurrentFile != "week23.csv" {
			t.Errorf("unexpected file names on request: %+v", queue.Enqueued[0])
		}
		if events.EventCount() != 1 {
			t.Errorf("expected 1 published job update, got %d", events.EventCount())
		}
	})

	t.Run("Rejects Week Number Out Of Range", func(t *testing.T) {
		queue := &mocks.MockJobQueue{}
		reg := registry.NewJobRegistry()
		events := &mocks.MockJobEventPublisher{}
		uc := NewSubmitJobUseCase(queue, reg, events, loader, nil, logger)

		for _, week := range []int{0, -3, 54} {
			_, err := uc.Submit(context.Background(), week, "week22.csv", "week23.csv")
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("week %d: expected a ValidationError, got %v", week, err)
			}
			if verr.Field != "week_num" {
				t.Errorf("week %d: expected field week_num, got %q", week, verr.Field)
			}
		}
		if queue.EnqueuedCount() != 0 {
			t.Errorf("expected nothing enqueued, got %d", queue.EnqueuedCount())
		}
	})

	t.Run("Rejects Missing Input File", func(t *testing.T) {
		queue := &mocks.MockJobQueue{}
		reg := registry.NewJobRegistry()
		events := &mocks.MockJobEventPublisher{}
		uc := NewSubmitJobUseCase(queue, reg, events, loader, nil, logger)

		_, err := uc.Submit(context.Background(), 23, "week22.csv", "nope.csv")

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected a ValidationError, got %v", err)
		}
		if verr.Field != "current_file" {
			t.Errorf("expected field current_file, got %q", verr.Field)
		}
		if queue.EnqueuedCount() != 0 {
			t.Errorf("expected nothing enqueued, got %d", queue.EnqueuedCount())
		}
	})

	t.Run("Rejects Path Traversal", func(t *testing.T) {
		queue := &mocks.MockJobQueue{}
		reg := registry.NewJobRegistry()
		events := &mocks.MockJobEventPublisher{}
		uc := NewSubmitJobUseCase(queue, reg, events, loader, nil, logger)

		_, err := uc.Submit(context.Background(), 23, "../secrets.csv", "week23.csv")

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected a ValidationError, got %v", err)
		}
		if verr.Field != "previous_file" {
			t.Errorf("expected field previous_file, got %q", verr.Field)
		}
	})

	t.Run("Enqueue Failure Rolls Back Registry", func(t *testing.T) {
		queue := &mocks.MockJobQueue{EnqueueErr: errors.New("stream unavailable")}
		reg := registry.NewJobRegistry()
		events := &mocks.MockJobEventPublisher{}
		uc := NewSubmitJobUseCase(queue, reg, events, loader, nil, logger)

		job, err := uc.Submit(context.Background(), 23, "week22.csv", "week23.csv")

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if job != nil {
			t.Errorf("expected no job on failure, got %+v", job)
		}
		if events.EventCount() != 0 {
			t.Errorf("expected no published updates, got %d", events.EventCount())
		}
	})
}
