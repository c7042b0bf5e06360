package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/display-watch/internal/domain"
)

func respondWithJSON(logger *slog.Logger, w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError maps domain errors onto status codes: invalid input 400,
// unknown ids 404, results read too early 409, everything unexpected an
// opaque 500. Failed-job results are handled by the result handler itself.
func respondWithError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(logger, w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, domain.ErrSendRejected):
		respondWithJSON(logger, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		respondWithJSON(logger, w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrNotReady):
		respondWithJSON(logger, w, http.StatusConflict, map[string]string{"error": "job not ready"})
	default:
		logger.Error("request failed", "error", err)
		respondWithJSON(logger, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
