package handler

import (
	"net/http"
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	engine *app.Engine
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine *app.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /health. The status degrades to unhealthy when the
// scheduler's structural self-test fails.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if h.engine != nil && !h.engine.Healthy() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}
