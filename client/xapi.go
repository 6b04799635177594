package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/smnsjas/go-xapi/backend"
)

// ErrClosed is returned for requests that cannot complete because the
// connection has closed.
var ErrClosed = errors.New("xapi: connection closed")

// DefaultFeedbackBuffer is the capacity of the feedback channel.
const DefaultFeedbackBuffer = 64

const jsonRPCVersion = "2.0"

// RPCError is a JSON-RPC error object returned by the device.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("xapi: rpc error %d: %s", e.Code, e.Message)
}

// Notification is a server-initiated message without an ID, such as
// feedback for a subscribed path.
type Notification struct {
	Method string
	Params json.RawMessage
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

// XAPI is a JSON-RPC 2.0 client running over a [backend.Backend].
//
// XAPI is safe for concurrent use. Requests may be issued before the backend
// has opened; the transport holds them until the connection is ready.
type XAPI struct {
	backend backend.Backend
	logger  *slog.Logger
	audit   *AuditLogger
	ids     requestIDs

	mu      sync.Mutex
	pending map[int64]chan rpcResult
	closed  bool
	err     error

	feedback  chan Notification
	ready     chan struct{}
	done      chan struct{}
	readyOnce sync.Once
}

// XAPIOption configures an XAPI client.
type XAPIOption func(*XAPI)

// WithClientLogger sets the logger used for protocol diagnostics.
func WithClientLogger(logger *slog.Logger) XAPIOption {
	return func(x *XAPI) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithAudit records connection and command audit events with l. By default
// a client built by a [Connector] with an audit logger continues that
// connect attempt's events.
func WithAudit(l *AuditLogger) XAPIOption {
	return func(x *XAPI) {
		x.audit = l
	}
}

// WithFeedbackBuffer sets the capacity of the feedback channel.
// Notifications that arrive while the channel is full are dropped.
func WithFeedbackBuffer(n int) XAPIOption {
	return func(x *XAPI) {
		if n >= 0 {
			x.feedback = make(chan Notification, n)
		}
	}
}

// New creates a client on b and starts consuming its events.
func New(b backend.Backend) *XAPI {
	return NewWithOptions(b)
}

// NewWithOptions creates a client on b with the given options.
func NewWithOptions(b backend.Backend, opts ...XAPIOption) *XAPI {
	x := &XAPI{
		backend:  b,
		logger:   slog.New(slog.DiscardHandler),
		pending:  make(map[int64]chan rpcResult),
		feedback: make(chan Notification, DefaultFeedbackBuffer),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	if c, ok := b.(auditCarrier); ok {
		x.audit = c.AuditLogger()
	}
	for _, opt := range opts {
		opt(x)
	}
	go x.loop()
	return x
}

// Factory returns a client constructor with opts applied, suitable for
// [Bind] and [ConnectGen].
func Factory(opts ...XAPIOption) func(backend.Backend) *XAPI {
	return func(b backend.Backend) *XAPI {
		return NewWithOptions(b, opts...)
	}
}

// Backend returns the backend the client runs on. For a client built by a
// [Connector] with an audit logger this is the connector's wrapper around it.
func (x *XAPI) Backend() backend.Backend {
	return x.backend
}

// Ready is closed once the backend reports that it is open.
func (x *XAPI) Ready() <-chan struct{} {
	return x.ready
}

// Done is closed once the backend has closed and all pending requests
// have failed.
func (x *XAPI) Done() <-chan struct{} {
	return x.done
}

// Err returns the last transport error once Done is closed.
func (x *XAPI) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

// Feedback returns the channel of server notifications. It is closed when
// the connection closes.
func (x *XAPI) Feedback() <-chan Notification {
	return x.feedback
}

func (x *XAPI) loop() {
	defer x.finish()

	for ev := range x.backend.Events() {
		switch ev.Kind {
		case backend.EventOpen:
			x.readyOnce.Do(func() {
				x.audit.LogConnection(SubtypeConnEstablished, OutcomeSuccess, SeverityInfo, nil)
				close(x.ready)
			})
			x.logger.Debug("xapi connection open")
		case backend.EventMessage:
			x.handleMessage(ev.Data)
		case backend.EventError:
			x.logger.Warn("xapi transport error", "error", ev.Err)
			x.mu.Lock()
			x.err = ev.Err
			x.mu.Unlock()
		case backend.EventClose:
			x.logger.Debug("xapi connection closed")
		}
	}
}

func (x *XAPI) finish() {
	x.mu.Lock()
	x.closed = true
	cause := x.err
	pending := x.pending
	x.pending = make(map[int64]chan rpcResult)
	x.mu.Unlock()

	err := ErrClosed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrClosed, cause)
	}
	for _, ch := range pending {
		ch <- rpcResult{err: err}
	}

	// The remote side may have ended the connection; release the backend.
	_ = x.backend.Close()

	if cause != nil {
		x.audit.LogConnection(SubtypeConnClosed, OutcomeFailure, SeverityWarning, map[string]any{
			"error": cause.Error(),
		})
	} else {
		x.audit.LogConnection(SubtypeConnClosed, OutcomeSuccess, SeverityInfo, nil)
	}

	close(x.feedback)
	close(x.done)
}

func (x *XAPI) handleMessage(data []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		x.logger.Warn("dropping malformed message", "error", err, "size", len(data))
		return
	}

	if msg.ID == nil {
		if msg.Method == "" {
			x.logger.Warn("dropping message without id or method")
			return
		}
		select {
		case x.feedback <- Notification{Method: msg.Method, Params: msg.Params}:
		default:
			x.logger.Warn("feedback buffer full, dropping notification", "method", msg.Method)
		}
		return
	}

	x.mu.Lock()
	ch, ok := x.pending[*msg.ID]
	delete(x.pending, *msg.ID)
	x.mu.Unlock()

	if !ok {
		x.logger.Debug("response for unknown request", "id", *msg.ID)
		return
	}
	if msg.Error != nil {
		ch <- rpcResult{err: msg.Error}
		return
	}
	ch <- rpcResult{result: msg.Result}
}

// Execute sends a JSON-RPC request and waits for its response. A device
// error is returned as an [*RPCError].
func (x *XAPI) Execute(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := x.ids.Next()
	x.audit.LogCommand(SubtypeCommandExecute, OutcomeAttempt, SeverityInfo, map[string]any{
		"method": method,
		"id":     id,
	})

	result, err := x.execute(ctx, id, method, params)
	if err != nil {
		x.audit.LogCommand(SubtypeCommandFailed, OutcomeFailure, SeverityError, map[string]any{
			"method": method,
			"id":     id,
			"error":  err.Error(),
		})
		return nil, err
	}

	x.audit.LogCommand(SubtypeCommandComplete, OutcomeSuccess, SeverityInfo, map[string]any{
		"method": method,
		"id":     id,
	})
	return result, nil
}

func (x *XAPI) execute(ctx context.Context, id int64, method string, params any) (json.RawMessage, error) {
	data, err := json.Marshal(rpcRequest{JSONRPC: jsonRPCVersion, ID: &id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("xapi: encode %s: %w", method, err)
	}

	ch := make(chan rpcResult, 1)
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil, ErrClosed
	}
	x.pending[id] = ch
	x.mu.Unlock()

	defer func() {
		x.mu.Lock()
		delete(x.pending, id)
		x.mu.Unlock()
	}()

	x.logger.Debug("xapi request", "id", id, "method", method)
	if err := x.backend.Send(ctx, data); err != nil {
		return nil, fmt.Errorf("xapi: send %s: %w", method, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a JSON-RPC notification, which has no response.
func (x *XAPI) Notify(ctx context.Context, method string, params any) error {
	data, err := json.Marshal(rpcRequest{JSONRPC: jsonRPCVersion, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("xapi: encode %s: %w", method, err)
	}
	if err := x.backend.Send(ctx, data); err != nil {
		return fmt.Errorf("xapi: send %s: %w", method, err)
	}
	return nil
}

// Command invokes the xCommand at path, e.g. "Dial" or "Audio/Volume/Set".
func (x *XAPI) Command(ctx context.Context, path string, params any) (json.RawMessage, error) {
	return x.Execute(ctx, "xCommand/"+strings.Trim(path, "/"), params)
}

// Get reads the configuration or status value at path.
func (x *XAPI) Get(ctx context.Context, path ...string) (json.RawMessage, error) {
	return x.Execute(ctx, "xGet", map[string]any{"Path": path})
}

// Set writes value to the configuration at path.
func (x *XAPI) Set(ctx context.Context, path []string, value any) (json.RawMessage, error) {
	return x.Execute(ctx, "xSet", map[string]any{"Path": path, "Value": value})
}

// Subscribe requests feedback for path. Notifications arrive on
// [XAPI.Feedback].
func (x *XAPI) Subscribe(ctx context.Context, path ...string) (json.RawMessage, error) {
	return x.Execute(ctx, "xFeedback/Subscribe", map[string]any{"Query": path})
}

// Close closes the backend. Pending requests fail with [ErrClosed].
func (x *XAPI) Close() error {
	return x.backend.Close()
}
