package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
	"github.com/V4T54L/display-watch/internal/usecase"
)

// JobHandler serves job submission plus the status and result reads that
// clients poll while a week is being processed.
type JobHandler struct {
	submit  *usecase.SubmitJobUseCase
	history *usecase.JobHistoryUseCase
	logger  *slog.Logger
}

func NewJobHandler(submit *usecase.SubmitJobUseCase, history *usecase.JobHistoryUseCase, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		submit:  submit,
		history: history,
		logger:  logger.With("component", "job_handler"),
	}
}

type submitJobRequest struct {
	WeekNum      int    `json:"week_num"`
	PreviousFile string `json:"previous_file"`
	CurrentFile  string `json:"current_file"`
}

type jobResultResponse struct {
	JobID       string            `json:"job_id"`
	WeekNum     int               `json:"week_num"`
	Status      domain.JobStatus  `json:"status"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Result      *domain.JobResult `json:"result,omitempty"`
}

// Submit handles POST /api/process. It validates the request, records the
// pending job, and enqueues it for a worker; processing itself is async.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	job, err := h.submit.Submit(r.Context(), req.WeekNum, req.PreviousFile, req.CurrentFile)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// Status handles GET /api/process/status/{jobID}.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.history.Status(r.Context(), r.PathValue("jobID"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, job)
}

// Result handles GET /api/process/result/{jobID}. Unfinished jobs answer
// 409, failed jobs 422 with the recorded error, unknown ids 404.
func (h *JobHandler) Result(w http.ResponseWriter, r *http.Request) {
	job, err := h.history.Result(r.Context(), r.PathValue("jobID"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	resp := jobResultResponse{
		JobID:       job.ID,
		WeekNum:     job.WeekNum,
		Status:      job.Status,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
		Result:      job.Result,
	}
	if job.Status == domain.JobFailed {
		respondWithJSON(h.logger, w, http.StatusUnprocessableEntity, resp)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, resp)
}
