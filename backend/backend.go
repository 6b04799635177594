package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/smnsjas/go-xapi/options"
	"github.com/smnsjas/go-xapi/transport"
)

// EventKind identifies a backend event.
type EventKind int

const (
	// EventOpen is emitted once the transport handshake completes.
	EventOpen EventKind = iota
	// EventMessage carries one inbound message.
	EventMessage
	// EventError reports a handshake or read failure.
	EventError
	// EventClose is the last event of every backend.
	EventClose
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered on [Backend.Events].
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Backend is a live logical connection.
type Backend interface {
	// Send writes one message to the remote side.
	Send(ctx context.Context, msg []byte) error

	// Events returns the event stream. The channel is closed after
	// EventClose has been delivered.
	Events() <-chan Event

	// Close tears down the connection.
	Close() error
}

// Initializer builds a Backend from fully resolved options.
type Initializer func(opts options.Options) (Backend, error)

// eventBuffer is the capacity of the event channel.
const eventBuffer = 64

// TransportBackend adapts a [transport.Handle] to the [Backend] interface.
type TransportBackend struct {
	handle transport.Handle

	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewTransportBackend starts h and exposes its callbacks as an event stream.
func NewTransportBackend(h transport.Handle) *TransportBackend {
	b := &TransportBackend{
		handle: h,
		events: make(chan Event, eventBuffer),
	}
	h.Start(transport.Handlers{
		OnOpen:    func() { b.emit(Event{Kind: EventOpen}) },
		OnMessage: func(data []byte) { b.emit(Event{Kind: EventMessage, Data: data}) },
		OnError:   func(err error) { b.emit(Event{Kind: EventError, Err: err}) },
		OnClose:   b.finish,
	})
	return b
}

// emit delivers ev. Transport callbacks run on one goroutine, so a full
// buffer applies back-pressure to the transport read loop.
func (b *TransportBackend) emit(ev Event) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.events <- ev
}

func (b *TransportBackend) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.events <- Event{Kind: EventClose}
	close(b.events)
}

// Send writes msg through the transport.
func (b *TransportBackend) Send(ctx context.Context, msg []byte) error {
	return b.handle.Send(ctx, msg)
}

// Events returns the event stream.
func (b *TransportBackend) Events() <-chan Event {
	return b.events
}

// Close closes the transport. EventClose follows once the transport has shut
// down.
func (b *TransportBackend) Close() error {
	return b.handle.Close()
}

// Handle returns the underlying transport handle.
func (b *TransportBackend) Handle() transport.Handle {
	return b.handle
}
