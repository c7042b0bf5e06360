package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/display-watch/internal/adapter/api/handler"
	"github.com/V4T54L/display-watch/internal/adapter/api/middleware"
	"github.com/V4T54L/display-watch/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the tracker API.
// Note: method prefixes and {pathValue} patterns need Go 1.22+.
func NewRouter(
	logger *slog.Logger,
	submitUseCase *usecase.SubmitJobUseCase,
	historyUseCase *usecase.JobHistoryUseCase,
	filterUseCase *usecase.FilterConfigUseCase,
	notifyUseCase *usecase.NotifyUseCase,
	events *handler.JobEventBroker,
) http.Handler {
	mux := http.NewServeMux()

	jobHandler := handler.NewJobHandler(submitUseCase, historyUseCase, logger)
	filterHandler := handler.NewFilterHandler(filterUseCase, logger)
	historyHandler := handler.NewHistoryHandler(historyUseCase, logger)
	notifyHandler := handler.NewNotifyHandler(notifyUseCase, logger)

	// Processing
	mux.HandleFunc("POST /api/process", jobHandler.Submit)
	mux.HandleFunc("GET /api/process/status/{jobID}", jobHandler.Status)
	mux.HandleFunc("GET /api/process/result/{jobID}", jobHandler.Result)

	// Filters
	mux.HandleFunc("GET /api/filters", filterHandler.Get)
	mux.HandleFunc("PUT /api/filters", filterHandler.Update)
	mux.HandleFunc("POST /api/filters/preview", filterHandler.Preview)
	mux.HandleFunc("POST /api/filters/toggle", filterHandler.Toggle)
	mux.HandleFunc("POST /api/filters/reset", filterHandler.Reset)
	mux.HandleFunc("GET /api/filters/options", filterHandler.Options)

	// History
	mux.HandleFunc("GET /api/history", historyHandler.List)
	mux.HandleFunc("GET /api/history/stats", historyHandler.Stats)
	mux.HandleFunc("POST /api/history/cleanup", historyHandler.Cleanup)
	mux.HandleFunc("GET /api/history/{jobID}", historyHandler.Get)
	mux.HandleFunc("DELETE /api/history/{jobID}", historyHandler.Delete)
	mux.HandleFunc("GET /api/history/{jobID}/records", historyHandler.Records)
	mux.HandleFunc("GET /api/history/{jobID}/artifacts/{kind}", historyHandler.Artifact)

	// Notifications
	mux.HandleFunc("GET /api/notifications/{jobID}/preview", notifyHandler.Preview)
	mux.HandleFunc("POST /api/notifications/{jobID}/send", notifyHandler.Send)

	// Job lifecycle events
	mux.Handle("GET /api/jobs/events", events)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	requestIDMiddleware := middleware.RequestID()
	loggingMiddleware := middleware.Logging(logger)

	return requestIDMiddleware(loggingMiddleware(mux))
}
