package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/usecase"
)

// FilterHandler serves the filter configuration endpoints.
type FilterHandler struct {
	filters *usecase.FilterConfigUseCase
	logger  *slog.Logger
}

func NewFilterHandler(filters *usecase.FilterConfigUseCase, logger *slog.Logger) *FilterHandler {
	return &FilterHandler{
		filters: filters,
		logger:  logger.With("component", "filter_handler"),
	}
}

type filterPreviewRequest struct {
	Config  domain.FilterConfig `json:"config"`
	WeekNum *int                `json:"week_num,omitempty"`
}

// Get handles GET /api/filters.
func (h *FilterHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.filters.Get(r.Context())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, cfg)
}

// Update handles PUT /api/filters. The stored configuration is replaced
// wholesale with the canonicalized request body.
func (h *FilterHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg domain.FilterConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	saved, err := h.filters.Update(r.Context(), cfg)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, saved)
}

// Preview handles POST /api/filters/preview. It replays a candidate
// configuration against a completed job without persisting anything.
func (h *FilterHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req filterPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	preview, err := h.filters.Preview(r.Context(), req.Config, req.WeekNum)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, preview)
}

// Toggle handles POST /api/filters/toggle.
func (h *FilterHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.filters.Toggle(r.Context())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, cfg)
}

// Reset handles POST /api/filters/reset.
func (h *FilterHandler) Reset(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.filters.Reset(r.Context())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, cfg)
}

// Options handles GET /api/filters/options?q=. It lists the distinct
// models, channels, and stores seen by the latest completed job so the
// UI can offer completions.
func (h *FilterHandler) Options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.filters.Options(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, opts)
}
