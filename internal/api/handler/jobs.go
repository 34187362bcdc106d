package handler

import (
	"net/http"

	"github.com/certops/certbot-ui/internal/api/middleware"
	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/certops/certbot-ui/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// JobHandler serves job status for polling clients. Jobs are owner-scoped:
// a missing job is 404, another user's job is 403.
type JobHandler struct {
	jobs *jobs.Store
}

// NewJobHandler creates the job handler.
func NewJobHandler(jobStore *jobs.Store) *JobHandler {
	return &JobHandler{jobs: jobStore}
}

// Get handles GET /api/certificates/jobs/{jobID}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid job ID", nil)
		return
	}

	job, ok := h.jobs.Get(jobID)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return
	}
	if job.UserID != userID {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Job belongs to another user", nil)
		return
	}
	response.JSON(w, job)
}

// List handles GET /api/certificates/jobs, returning the caller's jobs
// newest first.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	response.JSON(w, h.jobs.ListForUser(userID))
}
