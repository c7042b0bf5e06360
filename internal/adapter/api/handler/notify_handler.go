package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/V4T54L/display-watch/internal/usecase"
)

// NotifyHandler serves the notification preview and send endpoints for
// completed jobs.
type NotifyHandler struct {
	notify *usecase.NotifyUseCase
	logger *slog.Logger
}

func NewNotifyHandler(notify *usecase.NotifyUseCase, logger *slog.Logger) *NotifyHandler {
	return &NotifyHandler{
		notify: notify,
		logger: logger.With("component", "notify_handler"),
	}
}

type sendRequest struct {
	RecipientIDs []string `json:"recipient_ids"`
}

// Preview handles GET /api/notifications/{jobID}/preview. Nothing is
// delivered; the response shows exactly what Send would dispatch.
func (h *NotifyHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.notify.BuildPreview(r.Context(), r.PathValue("jobID"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, preview)
}

// Send handles POST /api/notifications/{jobID}/send. An empty body or an
// empty recipient_ids list selects every derived recipient; ids that do
// not match a derived recipient are ignored.
func (h *NotifyHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	report, err := h.notify.Send(r.Context(), r.PathValue("jobID"), req.RecipientIDs)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, report)
}
