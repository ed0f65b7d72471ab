package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/bus"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Buffer for control replies (pongs) to the peer.
	replyBufferSize = 8
)

// Client represents a single WebSocket progress stream. Events arrive on
// the client's bus subscription; the bus enforces the bounded-mailbox
// back-pressure policy, so a slow client loses old events rather than
// blocking the scheduler.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	sub    *bus.Subscription
	reply  chan []byte
	logger *logger.Logger

	ID       string
	TenantID string

	closed bool
	mu     sync.Mutex
}

// NewClient creates a new WebSocket client around an upgraded connection
// and its event subscription.
func NewClient(hub *Hub, conn *websocket.Conn, sub *bus.Subscription, tenantID string, log *logger.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		sub:      sub,
		reply:    make(chan []byte, replyBufferSize),
		logger:   log,
		ID:       uuid.NewString(),
		TenantID: tenantID,
	}
}

// Close tears the connection down and detaches from the bus.
// Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.sub.Close()
	c.conn.Close()
}

// ReadPump consumes client messages until the connection dies. The only
// recognised message is a ping, answered with a pong.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Remove(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error",
					"client_id", c.ID,
					"error", err,
				)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("invalid websocket message",
				"client_id", c.ID,
				"error", err,
			)
			continue
		}
		if msg.Type == messageTypePing {
			pong, _ := json.Marshal(PongMessage{Type: messageTypePong})
			select {
			case c.reply <- pong:
			default:
			}
		}
	}
}

// WritePump forwards bus events and control replies to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.C():
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// One event per frame so clients can parse each message alone.
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case data := <-c.reply:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
