package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestClient_Send(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	frame := []byte(`{"RequestCode":15,"InstrumentCount":1,"InstrumentList":[{"ExchangeSegment":"NSE_EQ","SecurityId":"1333"}]}`)
	if err := client.Send(frame); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(frame) {
		t.Errorf("received %q, want %q", received, frame)
	}
}

func TestClient_Messages(t *testing.T) {
	// Binary frames, the way the feed server sends packets.
	frames := [][]byte{
		{2, 16, 0, 1, 0, 0, 0, 0},
		{6, 16, 0, 1, 0, 0, 0, 0},
		{7, 9, 0, 0, 0, 0, 0, 0},
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	timeout := time.After(500 * time.Millisecond)
	for i := 0; i < len(frames); i++ {
		select {
		case msg := <-client.Messages():
			if string(msg) != string(frames[i]) {
				t.Errorf("frame %d: got %v, want %v", i, msg, frames[i])
			}
		case <-timeout:
			t.Fatalf("timeout waiting for frames, received %d of %d", i, len(frames))
		}
	}
}

func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:12345"), nil)

	if err := client.Send([]byte("test")); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	client.Close()

	if err := client.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestClient_ServerPing(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second)); err != nil {
			t.Logf("ping error: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	time.Sleep(200 * time.Millisecond)

	if !client.IsConnected() {
		t.Error("expected client to stay connected after server ping")
	}
}

func TestClient_StaleConnection(t *testing.T) {
	// Server never reads, so client pings never get ponged.
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 60 * time.Millisecond

	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if !errors.Is(err, ErrStaleConnection) {
			t.Errorf("expected ErrStaleConnection, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stale connection error")
	}
}

func TestClient_NoPongEnforcement(t *testing.T) {
	// PongTimeout of zero disables staleness detection even when the server
	// never answers pings.
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 0

	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		t.Errorf("unexpected error: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if !client.IsConnected() {
		t.Error("expected client to stay connected")
	}
}

func TestCloseCode(t *testing.T) {
	closeErr := &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "bye"}
	if got := CloseCode(closeErr); got != websocket.CloseGoingAway {
		t.Errorf("CloseCode = %d, want %d", got, websocket.CloseGoingAway)
	}
	if got := CloseCode(fmt.Errorf("read: %w", closeErr)); got != websocket.CloseGoingAway {
		t.Errorf("wrapped CloseCode = %d, want %d", got, websocket.CloseGoingAway)
	}
	if got := CloseCode(ErrStaleConnection); got != 0 {
		t.Errorf("CloseCode = %d for a non-close error, want 0", got)
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", cfg.PingInterval)
	}
	if cfg.PongTimeout != 0 {
		t.Errorf("PongTimeout = %v, want 0", cfg.PongTimeout)
	}
	if cfg.BufferSize != 10000 {
		t.Errorf("BufferSize = %d, want 10000", cfg.BufferSize)
	}
}
