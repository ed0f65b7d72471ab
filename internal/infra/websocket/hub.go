package websocket

import (
	"sync"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// Hub tracks the set of live progress stream clients so they can be
// enumerated for stats and closed on shutdown. Event routing itself happens
// on each client's bus subscription.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *logger.Logger
}

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  log,
	}
}

// Add registers a connected client.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client registered",
		"client_id", client.ID,
		"tenant_id", client.TenantID,
	)
}

// Remove drops a client. Idempotent; called from the client's read pump.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("websocket client unregistered",
			"client_id", client.ID,
			"tenant_id", client.TenantID,
		)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
