package handler

import (
	"net/http"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
)

// DashboardHandler serves the in-memory metrics snapshot.
type DashboardHandler struct {
	engine *app.Engine
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(engine *app.Engine) *DashboardHandler {
	return &DashboardHandler{engine: engine}
}

// Dashboard handles GET /api/metrics/dashboard.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Dashboard())
}
