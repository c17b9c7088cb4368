package conn

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// CloseCode extracts the WebSocket close status code carried by err, or 0
// when err is not a close error.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Full wss:// URL including auth query parameters
	PingInterval time.Duration // Keep-alive ping cadence
	PongTimeout  time.Duration // Max silence before the connection is considered stale; 0 disables enforcement
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}
