package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/usecase"
)

// OpsHandler serves the admin-port endpoints: health, queue inspection,
// and manual reclaim of stale deliveries.
type OpsHandler struct {
	queueAdmin *usecase.QueueAdminUseCase
	logger     *slog.Logger
}

func NewOpsHandler(queueAdmin *usecase.QueueAdminUseCase, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		queueAdmin: queueAdmin,
		logger:     logger.With("component", "ops_handler"),
	}
}

type claimRequest struct {
	Consumer string `json:"consumer"`
	MinIdle  string `json:"min_idle"`
	Count    int    `json:"count"`
}

type claimResponse struct {
	Claimed    int                `json:"claimed"`
	Deliveries []domain.QueuedJob `json:"deliveries"`
}

// HealthCheck handles GET /health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

// QueueStatus handles GET /admin/queue.
func (h *OpsHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.queueAdmin.Status(r.Context())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, status)
}

// ClaimStale handles POST /admin/queue/claim. It reassigns deliveries
// that have sat unacknowledged past min_idle to an admin consumer so a
// restarted fleet can drain them.
func (h *OpsHandler) ClaimStale(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	var minIdle time.Duration
	if req.MinIdle != "" {
		d, err := time.ParseDuration(req.MinIdle)
		if err != nil {
			respondWithError(h.logger, w, &domain.ValidationError{Field: "min_idle", Reason: "must be a duration such as 5m"})
			return
		}
		minIdle = d
	}

	claimed, err := h.queueAdmin.Claim(r.Context(), req.Consumer, minIdle, req.Count)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	if claimed == nil {
		claimed = []domain.QueuedJob{}
	}
	respondWithJSON(h.logger, w, http.StatusOK, claimResponse{Claimed: len(claimed), Deliveries: claimed})
}
