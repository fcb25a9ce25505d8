package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket is a gorilla/websocket-backed Transport. One value wraps a
// single established *websocket.Conn; use Dial to connect as a client or
// Upgrade to accept as a server.
type WebSocket struct {
	conn *websocket.Conn

	writeMu      sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

const (
	defaultDialTimeout  = 30 * time.Second
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// Dial connects to url as a WebSocket client.
func Dial(ctx context.Context, url string) (*WebSocket, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: websocket dial failed: %w", err)
	}
	return newWebSocket(conn), nil
}

var upgrader = websocket.Upgrader{}

// Upgrade accepts an inbound HTTP request as a WebSocket server connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: websocket upgrade failed: %w", err)
	}
	return newWebSocket(conn), nil
}

func newWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{
		conn:         conn,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
}

func (w *WebSocket) Send(ctx context.Context, e Envelope) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(w.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := w.conn.WriteJSON(e); err != nil {
		return fmt.Errorf("transport: write envelope: %w", err)
	}
	return nil
}

func (w *WebSocket) Recv(ctx context.Context) (Envelope, error) {
	deadline := time.Now().Add(w.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return Envelope{}, fmt.Errorf("transport: set read deadline: %w", err)
	}

	var e Envelope
	if err := w.conn.ReadJSON(&e); err != nil {
		return Envelope{}, fmt.Errorf("transport: read envelope: %w", err)
	}
	return e, nil
}

func (w *WebSocket) Close() error {
	_ = w.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return w.conn.Close()
}

var _ Transport = (*WebSocket)(nil)
