package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// WebSocket is a [Handle] backed by a gorilla/websocket client connection.
type WebSocket struct {
	url    string
	token  string
	dialer websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool

	// writeMu serializes writers. Close never takes it.
	writeMu sync.Mutex

	opened    chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// WebSocketOption configures a WebSocket.
type WebSocketOption func(*WebSocket)

// WithHandshakeTimeout sets the opening handshake timeout.
func WithHandshakeTimeout(d time.Duration) WebSocketOption {
	return func(w *WebSocket) {
		if d > 0 {
			w.dialer.HandshakeTimeout = d
		}
	}
}

// WithInsecureSkipVerify configures TLS to skip certificate verification.
// Devices commonly ship with self-signed certificates.
// WARNING: Only use this for testing or on trusted networks.
func WithInsecureSkipVerify(skip bool) WebSocketOption {
	return func(w *WebSocket) {
		if w.dialer.TLSClientConfig == nil {
			w.dialer.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		w.dialer.TLSClientConfig.InsecureSkipVerify = skip
	}
}

// WithTLSConfig sets a custom TLS configuration.
// MinVersion is raised to TLS 1.2 if lower.
func WithTLSConfig(cfg *tls.Config) WebSocketOption {
	return func(w *WebSocket) {
		if cfg == nil {
			return
		}
		cfg = cfg.Clone()
		if cfg.MinVersion < tls.VersionTLS12 {
			cfg.MinVersion = tls.VersionTLS12
		}
		w.dialer.TLSClientConfig = cfg
	}
}

// DialWebSocket is the default [Factory]. It validates the URL and returns a
// handle that connects once started.
func DialWebSocket(rawURL, authToken string) (Handle, error) {
	return NewWebSocket(rawURL, authToken)
}

// NewWebSocket creates an unstarted WebSocket handle for rawURL. The
// authToken, if not empty, is offered as the only subprotocol.
func NewWebSocket(rawURL, authToken string, opts ...WebSocketOption) (*WebSocket, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("transport: websocket url must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("transport: websocket url has no host")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &WebSocket{
		url:   rawURL,
		token: authToken,
		dialer: websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: DefaultHandshakeTimeout,
			TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		},
		ctx:    ctx,
		cancel: cancel,
		opened: make(chan struct{}),
		done:   make(chan struct{}),
	}
	if authToken != "" {
		w.dialer.Subprotocols = []string{authToken}
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// URL returns the endpoint the handle connects to.
func (w *WebSocket) URL() string {
	return w.url
}

// Start dials the endpoint in the background and delivers events to h.
func (w *WebSocket) Start(h Handlers) {
	w.startOnce.Do(func() {
		go w.run(h)
	})
}

func (w *WebSocket) run(h Handlers) {
	defer func() {
		if h.OnClose != nil {
			h.OnClose()
		}
	}()
	defer close(w.done)

	conn, resp, err := w.dialer.DialContext(w.ctx, w.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if w.ctx.Err() == nil && h.OnError != nil {
			h.OnError(fmt.Errorf("transport: dial websocket: %w", err))
		}
		return
	}

	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()
	defer w.release()

	close(w.opened)
	if h.OnOpen != nil {
		h.OnOpen()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !w.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && h.OnError != nil {
				h.OnError(fmt.Errorf("transport: read websocket: %w", err))
			}
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	}
}

// release closes the connection once the read loop has ended, unless Close
// already took it.
func (w *WebSocket) release() {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (w *WebSocket) isClosing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closing
}

// Send writes data as a single text message.
//
// Canceling ctx during a stalled write closes the connection, as a partially
// written frame cannot be recovered.
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	if w.isClosing() {
		return ErrClosed
	}

	select {
	case <-w.opened:
	case <-w.done:
		return ErrNotOpen
	case <-ctx.Done():
		return ctx.Err()
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	conn, closing := w.conn, w.closing
	w.mu.Unlock()
	if closing {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotOpen
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if w.isClosing() {
			return ErrClosed
		}
		return fmt.Errorf("transport: write websocket: %w", err)
	}
	return nil
}

// Close sends a close frame if connected and releases the connection. It does
// not wait for an in-flight Send; the pending write fails once the
// connection is closed.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closing = true
		conn := w.conn
		w.conn = nil
		w.mu.Unlock()

		w.cancel()

		if conn == nil {
			return
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
	})
	return err
}
