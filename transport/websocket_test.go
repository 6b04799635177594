package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer accepts connections offering the expected auth subprotocol and
// echoes every text message back.
func echoServer(t *testing.T, token string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{Subprotocols: []string{token}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.Subprotocols(r) == nil || websocket.Subprotocols(r)[0] != token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type recorder struct {
	opened   chan struct{}
	messages chan []byte
	errs     chan error
	closed   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		opened:   make(chan struct{}, 1),
		messages: make(chan []byte, 10),
		errs:     make(chan error, 10),
		closed:   make(chan struct{}, 1),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpen:    func() { r.opened <- struct{}{} },
		OnMessage: func(data []byte) { r.messages <- data },
		OnError:   func(err error) { r.errs <- err },
		OnClose:   func() { r.closed <- struct{}{} },
	}
}

func wait[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestWebSocket_RoundTrip(t *testing.T) {
	token := AuthToken("admin", "secret")
	srv := echoServer(t, token)

	h, err := DialWebSocket(wsURL(srv), token)
	require.NoError(t, err)

	rec := newRecorder()
	h.Start(rec.handlers())
	wait(t, rec.opened, "open")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Send(ctx, []byte(`{"jsonrpc":"2.0","method":"ping"}`)))

	msg := wait(t, rec.messages, "message")
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"ping"}`, string(msg))

	require.NoError(t, h.Close())
	wait(t, rec.closed, "close")
	assert.Empty(t, rec.errs)

	assert.ErrorIs(t, h.Send(ctx, []byte("late")), ErrClosed)
}

func TestWebSocket_SendBeforeOpenWaits(t *testing.T) {
	token := AuthToken("admin", "")
	srv := echoServer(t, token)

	h, err := NewWebSocket(wsURL(srv), token)
	require.NoError(t, err)
	defer h.Close()

	rec := newRecorder()
	h.Start(rec.handlers())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Send(ctx, []byte("hello")))
	assert.Equal(t, "hello", string(wait(t, rec.messages, "message")))
}

func TestWebSocket_RejectedHandshake(t *testing.T) {
	srv := echoServer(t, AuthToken("admin", "right"))

	h, err := DialWebSocket(wsURL(srv), AuthToken("admin", "wrong"))
	require.NoError(t, err)

	rec := newRecorder()
	h.Start(rec.handlers())

	err = wait(t, rec.errs, "error")
	assert.Contains(t, err.Error(), "dial websocket")
	wait(t, rec.closed, "close")

	assert.ErrorIs(t, h.Send(context.Background(), []byte("x")), ErrNotOpen)
	assert.Empty(t, rec.opened)
}

func TestWebSocket_SendHonoursContext(t *testing.T) {
	h, err := NewWebSocket("ws://127.0.0.1:1/ws", "")
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Send(ctx, []byte("x")), context.Canceled)
}

func TestNewWebSocket_InvalidURL(t *testing.T) {
	tests := []string{
		"http://codec/ws",
		"wss:///ws",
		"://bad",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := NewWebSocket(in, "")
			assert.Error(t, err)
		})
	}
}

func TestWebSocketOptions(t *testing.T) {
	h, err := NewWebSocket("wss://codec/ws", "", WithInsecureSkipVerify(true), WithHandshakeTimeout(time.Second))
	require.NoError(t, err)
	assert.True(t, h.dialer.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, time.Second, h.dialer.HandshakeTimeout)
}

// stalledServer upgrades every connection and never reads from it, so the
// client's socket buffers eventually fill and writes block.
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

// sendUntilError sends 1 MiB messages until Send fails.
func sendUntilError(ctx context.Context, h Handle) <-chan error {
	errc := make(chan error, 1)
	payload := make([]byte, 1<<20)
	go func() {
		for {
			if err := h.Send(ctx, payload); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc
}

func TestWebSocket_CloseDuringStalledSend(t *testing.T) {
	srv := stalledServer(t)

	h, err := NewWebSocket(wsURL(srv), "")
	require.NoError(t, err)

	rec := newRecorder()
	h.Start(rec.handlers())
	wait(t, rec.opened, "open")

	sendErr := sendUntilError(context.Background(), h)
	time.Sleep(300 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- h.Close() }()

	wait(t, closed, "Close to return")
	assert.ErrorIs(t, wait(t, sendErr, "stalled Send to fail"), ErrClosed)
	wait(t, rec.closed, "close")
}

func TestWebSocket_CancelDuringStalledSend(t *testing.T) {
	srv := stalledServer(t)

	h, err := NewWebSocket(wsURL(srv), "")
	require.NoError(t, err)
	defer h.Close()

	rec := newRecorder()
	h.Start(rec.handlers())
	wait(t, rec.opened, "open")

	ctx, cancel := context.WithCancel(context.Background())
	sendErr := sendUntilError(ctx, h)
	time.Sleep(300 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, wait(t, sendErr, "stalled Send to fail"), context.Canceled)
}

func TestWebSocket_RemoteCloseReleasesConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "restarting")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	h, err := NewWebSocket(wsURL(srv), "")
	require.NoError(t, err)

	netConns := make(chan net.Conn, 1)
	rec := newRecorder()
	handlers := rec.handlers()
	handlers.OnOpen = func() {
		h.mu.Lock()
		netConns <- h.conn.NetConn()
		h.mu.Unlock()
	}
	h.Start(handlers)

	nc := wait(t, netConns, "open")
	wait(t, rec.closed, "close")
	assert.Empty(t, rec.errs)

	_, err = nc.Read(make([]byte, 1))
	assert.True(t, errors.Is(err, net.ErrClosed), "connection not released: %v", err)

	assert.ErrorIs(t, h.Send(context.Background(), []byte("x")), ErrNotOpen)
	assert.NoError(t, h.Close())
}
