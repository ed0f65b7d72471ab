package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http/middleware"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/apierror"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/validator"
)

// WorkflowHandler handles workflow submission and queries.
type WorkflowHandler struct {
	engine   *app.Engine
	validate *validator.Validator
	logger   *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(engine *app.Engine, v *validator.Validator, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		engine:   engine,
		validate: v,
		logger:   log,
	}
}

// Create handles POST /api/workflows.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var spec workflow.Spec
	if err := decodeJSON(r, &spec); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(&spec); err != nil {
		var details any
		if verrs, ok := err.(validator.ValidationErrors); ok {
			details = verrs
		}
		apierror.ValidationFailed("Validation failed", details).WriteJSON(w)
		return
	}

	wf, err := h.engine.SubmitWorkflow(r.Context(), tenantID, &spec)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkflowResponse(wf))
}

// List handles GET /api/workflows. Only the caller's workflows are visible.
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	workflows := h.engine.ListWorkflows(tenantID)
	out := make([]WorkflowResponse, len(workflows))
	for i, wf := range workflows {
		out[i] = toWorkflowResponse(wf)
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/workflows/{workflow_id}.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	workflowID := chi.URLParam(r, "workflow_id")

	wf, err := h.engine.GetWorkflow(tenantID, workflowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkflowResponse(wf))
}

// WorkflowProgressResponse is the wire shape of the progress endpoint.
type WorkflowProgressResponse struct {
	WorkflowID    string   `json:"workflow_id"`
	Progress      float64  `json:"progress"`
	Status        string   `json:"status"`
	JobsCompleted int      `json:"jobs_completed"`
	JobsTotal     int      `json:"jobs_total"`
	ActiveJobs    []string `json:"active_jobs"`
}

// GetProgress handles GET /api/progress/workflow/{workflow_id}.
func (h *WorkflowHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	workflowID := chi.URLParam(r, "workflow_id")

	wf, err := h.engine.GetWorkflow(tenantID, workflowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WorkflowProgressResponse{
		WorkflowID:    wf.WorkflowID,
		Progress:      wf.Progress(),
		Status:        string(wf.Status()),
		JobsCompleted: wf.JobsCompleted(),
		JobsTotal:     len(wf.Jobs),
		ActiveJobs:    wf.ActiveJobIDs(),
	})
}
