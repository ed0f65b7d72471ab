package websocket

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/apierror"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are not restricted; tenant identity comes from the path
		// and streams only ever carry that tenant's events.
		return true
	},
}

// Handler handles WebSocket upgrade requests for progress streams.
type Handler struct {
	hub    *Hub
	engine *app.Engine
	logger *logger.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, engine *app.Engine, log *logger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		engine: engine,
		logger: log,
	}
}

// ServeWS handles GET /api/progress/ws/{tenant_id}. The stream carries the
// tenant's job and workflow events until the client disconnects.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant_id")
	if tenantID == "" {
		apierror.TenantMissing().WriteJSON(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			"tenant_id", tenantID,
			"error", err,
		)
		return
	}

	sub := h.engine.Subscribe(tenantID)
	client := NewClient(h.hub, conn, sub, tenantID, h.logger)
	h.hub.Add(client)

	h.logger.Info("websocket client connected",
		"client_id", client.ID,
		"tenant_id", tenantID,
		"remote_addr", r.RemoteAddr,
	)

	go client.WritePump()
	go client.ReadPump()
}
