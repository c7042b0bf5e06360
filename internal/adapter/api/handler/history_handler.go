package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/usecase"
)

// HistoryHandler serves the persisted job history: listing, stats,
// per-job records, artifact downloads, and retention cleanup.
type HistoryHandler struct {
	history *usecase.JobHistoryUseCase
	logger  *slog.Logger
}

func NewHistoryHandler(history *usecase.JobHistoryUseCase, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger.With("component", "history_handler"),
	}
}

type historyListResponse struct {
	Jobs  []domain.JobRecord `json:"jobs"`
	Total int                `json:"total"`
}

type historyRecordsResponse struct {
	Records []domain.ChangeRecord `json:"records"`
	Count   int                   `json:"count"`
}

type cleanupRequest struct {
	Days int `json:"days"`
}

// List handles GET /api/history?page=&limit=&week=.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _, err := queryInt(r, "page")
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	var week *int
	if v, ok, err := queryInt(r, "week"); err != nil {
		respondWithError(h.logger, w, err)
		return
	} else if ok {
		week = &v
	}

	jobs, total, err := h.history.List(r.Context(), page, limit, week)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.JobRecord{}
	}
	respondWithJSON(h.logger, w, http.StatusOK, historyListResponse{Jobs: jobs, Total: total})
}

// Stats handles GET /api/history/stats.
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.Stats(r.Context())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, stats)
}

// Get handles GET /api/history/{jobID}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.history.Get(r.Context(), r.PathValue("jobID"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, rec)
}

// Delete handles DELETE /api/history/{jobID}.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Delete(r.Context(), r.PathValue("jobID")); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Records handles GET /api/history/{jobID}/records?set=filtered|unfiltered.
// The filtered set is the default.
func (h *HistoryHandler) Records(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.Records(r.Context(), r.PathValue("jobID"), r.URL.Query().Get("set"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	if records == nil {
		records = []domain.ChangeRecord{}
	}
	respondWithJSON(h.logger, w, http.StatusOK, historyRecordsResponse{Records: records, Count: len(records)})
}

// Artifact handles GET /api/history/{jobID}/artifacts/{kind}. The stored
// file is streamed as an attachment.
func (h *HistoryHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	rc, name, err := h.history.OpenArtifact(r.Context(), jobID, r.PathValue("kind"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("artifact stream interrupted", "job_id", jobID, "file", name, "error", err)
	}
}

// Cleanup handles POST /api/history/cleanup. An empty body or days <= 0
// falls back to the default retention window.
func (h *HistoryHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	deleted, err := h.history.Cleanup(r.Context(), req.Days)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// queryInt parses an optional integer query parameter. The bool reports
// whether the parameter was present.
func queryInt(r *http.Request, key string) (int, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, &domain.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return v, true, nil
}
