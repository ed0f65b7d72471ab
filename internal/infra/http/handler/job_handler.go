package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/imaging"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http/middleware"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/apierror"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// JobHandler handles job queries, cancellation and result retrieval.
type JobHandler struct {
	engine  *app.Engine
	storage *imaging.Storage
	logger  *logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(engine *app.Engine, storage *imaging.Storage, log *logger.Logger) *JobHandler {
	return &JobHandler{
		engine:  engine,
		storage: storage,
		logger:  log,
	}
}

// Get handles GET /api/jobs/{job_id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	jobID := chi.URLParam(r, "job_id")

	j, err := h.engine.GetJob(tenantID, jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j, time.Now().UTC()))
}

// JobResultsResponse is the wire shape of the result endpoint.
type JobResultsResponse struct {
	JobID      string         `json:"job_id"`
	ResultPath string         `json:"result_path"`
	Results    map[string]any `json:"results"`
}

// GetResults handles GET /api/jobs/{job_id}/results.
func (h *JobHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	jobID := chi.URLParam(r, "job_id")

	j, err := h.engine.GetJob(tenantID, jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if j.ResultPath == "" {
		apierror.NotFound("Job results").WriteJSON(w)
		return
	}

	results, err := h.storage.LoadPath(j.ResultPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultsResponse{
		JobID:      j.JobID,
		ResultPath: j.ResultPath,
		Results:    results,
	})
}

// Cancel handles DELETE /api/jobs/{job_id}. Only PENDING jobs can be
// cancelled; the cancellation cascades to dependents.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	jobID := chi.URLParam(r, "job_id")

	j, err := h.engine.CancelJob(r.Context(), tenantID, jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j, time.Now().UTC()))
}
