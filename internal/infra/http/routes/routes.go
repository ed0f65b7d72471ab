// Package routes wires the HTTP handlers onto the router.
package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/imaging"
	infrahttp "github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http/handler"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http/middleware"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/websocket"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/validator"
)

// Dependencies carries everything the routes need.
type Dependencies struct {
	Config    *config.Config
	Engine    *app.Engine
	Storage   *imaging.Storage
	Hub       *websocket.Hub
	Validator *validator.Validator
	Logger    *logger.Logger
}

// Setup registers all routes.
func Setup(r infrahttp.Router, deps *Dependencies) {
	workflowHandler := handler.NewWorkflowHandler(deps.Engine, deps.Validator, deps.Logger)
	jobHandler := handler.NewJobHandler(deps.Engine, deps.Storage, deps.Logger)
	dashboardHandler := handler.NewDashboardHandler(deps.Engine)
	healthHandler := handler.NewHealthHandler(deps.Engine)
	wsHandler := websocket.NewHandler(deps.Hub, deps.Engine, deps.Logger)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", promhttp.Handler().ServeHTTP)

	requireTenant := middleware.RequireTenant()
	timeout := middleware.Timeout(deps.Config.Server.RequestTimeout)

	r.Group("/api", func(api infrahttp.Router) {
		api.Group("/workflows", func(wr infrahttp.Router) {
			wr.POST("/", workflowHandler.Create)
			wr.GET("/", workflowHandler.List)
			wr.GET("/{workflow_id}", workflowHandler.Get)
		}, requireTenant, timeout)

		api.Group("/jobs", func(jr infrahttp.Router) {
			jr.GET("/{job_id}", jobHandler.Get)
			jr.GET("/{job_id}/results", jobHandler.GetResults)
			jr.DELETE("/{job_id}", jobHandler.Cancel)
		}, requireTenant, timeout)

		api.GET("/metrics/dashboard", dashboardHandler.Dashboard, timeout)

		api.Group("/progress", func(pr infrahttp.Router) {
			pr.GET("/workflow/{workflow_id}", workflowHandler.GetProgress, requireTenant, timeout)
			// The stream is long-lived: no request timeout applies here.
			pr.GET("/ws/{tenant_id}", wsHandler.ServeWS)
		})
	})
}
