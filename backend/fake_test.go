package backend

import (
	"context"
	"sync"

	"github.com/smnsjas/go-xapi/transport"
)

// fakeHandle is an in-memory transport.Handle driven by the test.
type fakeHandle struct {
	mu       sync.Mutex
	handlers transport.Handlers
	started  chan struct{}
	sent     [][]byte
	closed   bool
	sendErr  error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{started: make(chan struct{})}
}

func (f *fakeHandle) Start(h transport.Handlers) {
	f.mu.Lock()
	f.handlers = h
	f.mu.Unlock()
	close(f.started)
}

func (f *fakeHandle) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	already := f.closed
	f.closed = true
	h := f.handlers
	f.mu.Unlock()
	if !already && h.OnClose != nil {
		h.OnClose()
	}
	return nil
}

func (f *fakeHandle) open() { f.handlers.OnOpen() }
func (f *fakeHandle) message(s string) { f.handlers.OnMessage([]byte(s)) }
func (f *fakeHandle) fail(err error) { f.handlers.OnError(err) }

// factoryCall records one invocation of a socket factory.
type factoryCall struct {
	url   string
	token string
}

type fakeFactory struct {
	calls  []factoryCall
	handle *fakeHandle
	err    error
}

func (f *fakeFactory) dial(url, token string) (transport.Handle, error) {
	f.calls = append(f.calls, factoryCall{url: url, token: token})
	if f.err != nil {
		return nil, f.err
	}
	f.handle = newFakeHandle()
	return f.handle, nil
}
