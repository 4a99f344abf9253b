package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established, message-oriented connection to the substrate.
// Read and Write may be called concurrently with each other but not with themselves.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer establishes connections. The Manager is the only caller.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) { return f(ctx, url) }

// WebsocketOptions configures a WebsocketDialer.
type WebsocketOptions struct {
	// Header is sent with the opening handshake.
	Header http.Header
	// WriteTimeout bounds writes whose context carries no deadline.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
	// ReadLimit caps the size of one inbound frame in bytes (0 = unlimited).
	ReadLimit int64
}

// WebsocketDialer dials the substrate with gorilla/websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
	opts   WebsocketOptions
}

var _ Dialer = (*WebsocketDialer)(nil)

// NewWebsocketDialer creates a Dialer for ws:// and wss:// endpoints.
func NewWebsocketDialer(optFns ...func(o *WebsocketOptions)) *WebsocketDialer {
	opts := WebsocketOptions{
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 30 * time.Second,
		ReadLimit:        1 << 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		opts: opts,
	}
}

// Dial opens a websocket connection to url.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, d.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if d.opts.ReadLimit > 0 {
		ws.SetReadLimit(d.opts.ReadLimit)
	}
	return &wsConn{ws: ws, writeTimeout: d.opts.WriteTimeout}, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

// Read blocks for the next text or binary frame. Cancelling ctx expires the
// read deadline so the call returns promptly.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok && c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}
