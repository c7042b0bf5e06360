package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/V4T54L/display-watch/internal/adapter/api/handler"
	"github.com/V4T54L/display-watch/internal/adapter/api/middleware"
	"github.com/V4T54L/display-watch/internal/adapter/registry"
	"github.com/V4T54L/display-watch/internal/adapter/tabular"
	"github.com/V4T54L/display-watch/internal/domain/mocks"
	"github.com/V4T54L/display-watch/internal/usecase"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewJobRegistry()
	history := &mocks.MockJobHistoryRepository{}
	events := handler.NewJobEventBroker(logger)

	submitUC := usecase.NewSubmitJobUseCase(&mocks.MockJobQueue{}, reg, events, tabular.NewLoader(t.TempDir(), logger), nil, logger)
	historyUC := usecase.NewJobHistoryUseCase(history, reg, &mocks.MockArtifactStore{}, logger)
	filterUC := usecase.NewFilterConfigUseCase(&mocks.MockFilterConfigRepository{}, history, logger)
	notifyUC := usecase.NewNotifyUseCase(history, &mocks.MockContactDirectory{}, &mocks.MockNotifier{}, nil, logger)

	return NewRouter(logger, submitUC, historyUC, filterUC, notifyUC, events)
}

func TestRouter(t *testing.T) {
	router := newTestRouter(t)

	t.Run("Health Endpoint Answers OK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
		if rr.Body.String() != "OK" {
			t.Errorf("expected body OK, got %q", rr.Body.String())
		}
		if rr.Header().Get(middleware.RequestIDHeader) == "" {
			t.Error("expected a generated request id on the response")
		}
	})

	t.Run("Echoes A Provided Request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if got := rr.Header().Get(middleware.RequestIDHeader); got != "req-123" {
			t.Errorf("expected the request id echoed, got %q", got)
		}
	})

	t.Run("Filters Route Is Wired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/filters", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
	})

	t.Run("Unknown Routes Answer Not Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
		}
	})

	t.Run("Wrong Methods Are Rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/filters", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
		}
	})
}

func TestAdminRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := &mocks.MockJobQueue{}
	router := NewAdminRouter(usecase.NewQueueAdminUseCase(queue, logger), logger)

	t.Run("Serves Prometheus Metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
	})

	t.Run("Serves The Queue Status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/queue", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
	})
}
