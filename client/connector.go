package client

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smnsjas/go-xapi/backend"
	"github.com/smnsjas/go-xapi/options"
)

// ConnectFunc connects with the given call arguments: none, a URL string, or
// an [options.Options] record (an [options.Target] is also accepted).
type ConnectFunc[T any] func(args ...any) (T, error)

// Connector resolves connect calls against a fixed defaults layer and builds
// backends with a fixed initializer. It holds no mutable state and is safe
// for concurrent use.
type Connector struct {
	init     backend.Initializer
	defaults options.Options

	levels    LevelSetter
	logger    *slog.Logger
	auditSink *slog.Logger
	metrics   *connectMetrics
}

// Option configures a Connector.
type Option func(*Connector)

// WithLevelSetter sets the hook that receives the resolved log level on
// every connect. The default is a no-op.
func WithLevelSetter(s LevelSetter) Option {
	return func(c *Connector) {
		if s != nil {
			c.levels = s
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAuditLogger enables connection audit events written to logger.
func WithAuditLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.auditSink = logger
	}
}

// WithMetrics registers connect counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Connector) {
		if reg != nil {
			c.metrics = newConnectMetrics(reg)
		}
	}
}

// NewConnector creates a connector. A nil init selects [backend.Dispatch].
// The defaults layer is copied and never modified afterwards.
func NewConnector(init backend.Initializer, defaults options.Options, opts ...Option) *Connector {
	if init == nil {
		init = backend.Dispatch
	}
	c := &Connector{
		init:     init,
		defaults: defaults.Clone(),
		levels:   noopLevels{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Defaults returns a copy of the registered defaults layer.
func (c *Connector) Defaults() options.Options {
	return c.defaults.Clone()
}

// Resolve decodes args and merges them over the registered and built-in
// defaults without constructing a backend.
func (c *Connector) Resolve(args ...any) (options.Options, error) {
	target, err := options.DecodeTarget(args...)
	if err != nil {
		return options.Options{}, err
	}
	call, err := target.Normalize()
	if err != nil {
		return options.Options{}, err
	}
	return options.Merge(options.Defaults(), c.defaults, call), nil
}

// Backend resolves args and builds a backend for them. With an audit logger
// configured, the backend is wrapped so that an [XAPI] built on it continues
// the attempt's audit trail.
func (c *Connector) Backend(args ...any) (backend.Backend, error) {
	resolved, err := c.Resolve(args...)
	if err != nil {
		c.logger.Debug("rejected connect arguments", "error", err)
		c.metrics.observe("", err)
		return nil, err
	}

	c.applyLevel(resolved.LogLevel)

	c.logger.Debug("resolved connection options",
		"protocol", resolved.Protocol,
		"host", resolved.Host,
		"port", resolved.Port,
		"username", resolved.Username,
	)

	audit := NewAuditLogger(c.auditSink, resolved.Username, resolved.Host)
	audit.LogConnection(SubtypeConnAttempt, OutcomeAttempt, SeverityInfo, map[string]any{
		"protocol": resolved.Protocol,
		"port":     resolved.Port,
	})

	b, err := c.init(resolved)
	c.metrics.observe(resolved.Protocol, err)
	if err != nil {
		c.logger.Warn("backend initialization failed", "protocol", resolved.Protocol, "host", resolved.Host, "error", err)
		audit.LogConnection(SubtypeConnFailed, OutcomeFailure, SeverityError, map[string]any{
			"protocol": resolved.Protocol,
			"error":    err.Error(),
		})
		return nil, err
	}

	audit.LogConnection(SubtypeConnInitialized, OutcomeSuccess, SeverityInfo, map[string]any{
		"protocol": resolved.Protocol,
	})
	if c.auditSink != nil {
		return &auditedBackend{Backend: b, audit: audit}, nil
	}
	return b, nil
}

func (c *Connector) applyLevel(level string) {
	if level == "" {
		return
	}
	if err := c.levels.SetLevel(level); err != nil {
		c.logger.Warn("ignoring log level", "level", level, "error", err)
	}
}

// Bind returns the connect function of c for the client type built by
// newClient.
func Bind[T any](c *Connector, newClient func(backend.Backend) T) ConnectFunc[T] {
	return func(args ...any) (T, error) {
		b, err := c.Backend(args...)
		if err != nil {
			var zero T
			return zero, err
		}
		return newClient(b), nil
	}
}

// MakeConnector is the curried form of [NewConnector] and [Bind]: it fixes
// the initializer and defaults and returns a function that, given a client
// constructor, yields the connect function.
func MakeConnector[T any](init backend.Initializer, defaults options.Options, opts ...Option) func(newClient func(backend.Backend) T) ConnectFunc[T] {
	c := NewConnector(init, defaults, opts...)
	return func(newClient func(backend.Backend) T) ConnectFunc[T] {
		return Bind(c, newClient)
	}
}

// defaultConnector dispatches with the default dispatcher and registers the
// secure WebSocket protocol.
var defaultConnector = NewConnector(backend.Dispatch, options.Options{Protocol: options.DefaultProtocol})

// ConnectGen returns a connect function for a custom client type using the
// default connector.
func ConnectGen[T any](newClient func(backend.Backend) T) ConnectFunc[T] {
	return Bind(defaultConnector, newClient)
}

// Connect connects with the default connector and returns an [XAPI] client.
func Connect(args ...any) (*XAPI, error) {
	return ConnectGen(New)(args...)
}
