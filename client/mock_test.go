package client

import (
	"context"
	"sync"

	"github.com/smnsjas/go-xapi/backend"
	"github.com/smnsjas/go-xapi/options"
)

// MockBackend is an in-memory backend.Backend driven by the test.
type MockBackend struct {
	mu     sync.Mutex
	events chan backend.Event
	sent   chan []byte
	closed bool

	closeCalls int

	// SendFunc, if set, replaces the default Send behavior.
	SendFunc func(ctx context.Context, msg []byte) error
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		events: make(chan backend.Event, 64),
		sent:   make(chan []byte, 64),
	}
}

func (m *MockBackend) Send(ctx context.Context, msg []byte) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.sent <- msg
	return nil
}

func (m *MockBackend) Events() <-chan backend.Event {
	return m.events
}

func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.endLocked()
	return nil
}

// End simulates the remote side ending the connection.
func (m *MockBackend) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
}

func (m *MockBackend) endLocked() {
	if m.closed {
		return
	}
	m.closed = true
	m.events <- backend.Event{Kind: backend.EventClose}
	close(m.events)
}

func (m *MockBackend) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

func (m *MockBackend) emit(ev backend.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.events <- ev
	}
}

func (m *MockBackend) Open()            { m.emit(backend.Event{Kind: backend.EventOpen}) }
func (m *MockBackend) Message(s string) { m.emit(backend.Event{Kind: backend.EventMessage, Data: []byte(s)}) }
func (m *MockBackend) Fail(err error)   { m.emit(backend.Event{Kind: backend.EventError, Err: err}) }

func (m *MockBackend) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// initRecorder is a backend.Initializer that records every call.
type initRecorder struct {
	mu      sync.Mutex
	calls   []options.Options
	backend *MockBackend
	err     error
}

func (r *initRecorder) init(o options.Options) (backend.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, o)
	if r.err != nil {
		return nil, r.err
	}
	r.backend = NewMockBackend()
	return r.backend, nil
}

func (r *initRecorder) Calls() []options.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]options.Options(nil), r.calls...)
}

// levelRecorder is a LevelSetter that records every level it receives.
type levelRecorder struct {
	mu     sync.Mutex
	levels []string
	err    error
}

func (l *levelRecorder) SetLevel(level string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
	return l.err
}

func (l *levelRecorder) Levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.levels...)
}

// stubClient is a minimal client type used to check what Bind hands over.
type stubClient struct {
	b backend.Backend
}

func newStubClient(b backend.Backend) *stubClient { return &stubClient{b: b} }
