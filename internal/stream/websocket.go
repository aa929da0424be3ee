package stream

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/musher-dev/lookout/internal/buildinfo"
)

// Dialer opens push channel connections.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// Conn is one push channel connection. Send is never called concurrently;
// Receive is called from a single goroutine. Close must be idempotent.
type Conn interface {
	Send(frame Frame) error
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxFrameBytes    = 1 << 20
)

// WebSocketDialer dials JSON-framed websocket connections.
type WebSocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a websocket dialer.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial implements Dialer. The token is sent as a bearer Authorization header
// on the handshake when non-empty.
func (d *WebSocketDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	header := http.Header{}
	header.Set("User-Agent", buildinfo.UserAgent())

	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}

		return nil, fmt.Errorf("failed to dial push channel: %w", err)
	}

	ws.SetReadLimit(maxFrameBytes)

	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(frame Frame) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return c.ws.WriteJSON(frame)
}

func (c *wsConn) Receive(_ context.Context) (Frame, error) {
	var frame Frame
	if err := c.ws.ReadJSON(&frame); err != nil {
		return Frame{}, err
	}

	return frame, nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})

	return c.closeErr
}

// DeriveURL builds the push channel URL from the API base URL: http becomes
// ws, https becomes wss, and the path is replaced with /ws.
func DeriveURL(apiURL string) (string, error) {
	u, err := neturl.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported API URL scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("API URL %q has no host", apiURL)
	}

	u.Path = "/ws"
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}
