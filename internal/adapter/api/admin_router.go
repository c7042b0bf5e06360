package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/display-watch/internal/adapter/api/handler"
	"github.com/V4T54L/display-watch/internal/usecase"
)

// NewAdminRouter creates and configures the HTTP router for the admin port:
// Prometheus metrics plus job queue inspection and repair.
func NewAdminRouter(queueAdminUseCase *usecase.QueueAdminUseCase, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	opsHandler := handler.NewOpsHandler(queueAdminUseCase, logger)

	mux.HandleFunc("GET /health", opsHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Queue operations
	mux.HandleFunc("GET /admin/queue", opsHandler.QueueStatus)
	mux.HandleFunc("POST /admin/queue/claim", opsHandler.ClaimStale)

	return mux
}
