// Package websocket bridges the scheduler's event bus to per-tenant
// WebSocket progress streams.
package websocket

// ClientMessage is a message received from the client. The only supported
// client message is an unsolicited ping.
type ClientMessage struct {
	Type string `json:"type"`
}

// PongMessage is the reply to a client ping.
type PongMessage struct {
	Type string `json:"type"`
}

const (
	messageTypePing = "ping"
	messageTypePong = "pong"
)
