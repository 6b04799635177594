package transport

import (
	"context"
	"errors"
)

var (
	// ErrNotOpen is returned by Send when the handle was closed before the
	// handshake completed.
	ErrNotOpen = errors.New("transport: connection not open")

	// ErrClosed is returned by Send after the handle has been closed.
	ErrClosed = errors.New("transport: connection closed")
)

// Handlers receives the lifecycle and message events of a [Handle].
// Any callback may be nil. Callbacks are invoked from a single goroutine
// owned by the handle.
type Handlers struct {
	// OnOpen is called once the handshake has completed.
	OnOpen func()

	// OnMessage is called for every inbound message.
	OnMessage func(data []byte)

	// OnError is called for handshake and read failures.
	OnError func(err error)

	// OnClose is called exactly once when the connection ends, whether it
	// opened or not.
	OnClose func()
}

// Handle is a transport that may still be connecting.
type Handle interface {
	// Start begins the handshake and event delivery. It must be called at
	// most once and does not block.
	Start(h Handlers)

	// Send writes one message. It waits for the handshake to complete or
	// for ctx to be done.
	Send(ctx context.Context, data []byte) error

	// Close tears down the connection. It is safe to call more than once.
	Close() error
}

// Factory constructs a WebSocket handle from a URL and an authorization
// token.
type Factory func(url, authToken string) (Handle, error)
