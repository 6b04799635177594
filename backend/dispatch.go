package backend

import (
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/smnsjas/go-xapi/options"
	"github.com/smnsjas/go-xapi/transport"
)

// WebSocketPath is the device endpoint for JSON-RPC over WebSocket.
const WebSocketPath = "/ws"

// Protocols handled by the dispatcher.
const (
	ProtocolDefault = ""
	ProtocolWS      = "ws:"
	ProtocolWSS     = "wss:"
	ProtocolSSH     = "ssh:"
)

// ProtocolName returns protocol for display, naming the empty protocol
// "default".
func ProtocolName(protocol string) string {
	if protocol == ProtocolDefault {
		return "default"
	}
	return protocol
}

// SSHFactory constructs an SSH transport handle.
type SSHFactory func(cfg transport.SSHConfig) (transport.Handle, error)

// DefaultSSHFactory builds a [transport.SSH] handle.
func DefaultSSHFactory(cfg transport.SSHConfig) (transport.Handle, error) {
	return transport.NewSSH(cfg)
}

// Dispatcher maps a resolved protocol to the transport that serves it.
// The set of protocols is fixed when the dispatcher is built.
type Dispatcher struct {
	newSocket transport.Factory
	newSSH    SSHFactory
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSocketFactory sets the WebSocket constructor (default:
// [transport.DialWebSocket]).
func WithSocketFactory(f transport.Factory) DispatcherOption {
	return func(d *Dispatcher) {
		if f != nil {
			d.newSocket = f
		}
	}
}

// WithSSH enables the "ssh:" protocol. A nil factory selects
// [DefaultSSHFactory].
func WithSSH(f SSHFactory) DispatcherOption {
	return func(d *Dispatcher) {
		if f == nil {
			f = DefaultSSHFactory
		}
		d.newSSH = f
	}
}

// WithLogger sets the logger used for dispatch decisions.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher serving "", "ws:" and "wss:", plus any
// protocol enabled through opts.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		newSocket: transport.DialWebSocket,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDispatcher = NewDispatcher()

// Dispatch builds a backend with the default dispatcher.
// It is the default [Initializer].
func Dispatch(opts options.Options) (Backend, error) {
	return defaultDispatcher.Dispatch(opts)
}

// Protocols returns the protocols the dispatcher accepts.
func (d *Dispatcher) Protocols() []string {
	p := []string{ProtocolDefault, ProtocolWS, ProtocolWSS}
	if d.newSSH != nil {
		p = append(p, ProtocolSSH)
	}
	return p
}

// Supports reports whether protocol is one of the dispatcher's cases.
func (d *Dispatcher) Supports(protocol string) bool {
	return slices.Contains(d.Protocols(), protocol)
}

// Dispatch builds the backend for opts.Protocol. Protocols outside the
// dispatcher's set fail with an [UnsupportedProtocolError] before any
// transport is constructed. Transport construction errors are returned
// unchanged.
func (d *Dispatcher) Dispatch(opts options.Options) (Backend, error) {
	switch opts.Protocol {
	case ProtocolDefault, ProtocolWS, ProtocolWSS:
		return d.dispatchWebSocket(opts)
	case ProtocolSSH:
		if d.newSSH != nil {
			return d.dispatchSSH(opts)
		}
	}

	d.logger.Warn("unsupported protocol", "protocol", opts.Protocol)
	return nil, &UnsupportedProtocolError{Protocol: opts.Protocol}
}

func (d *Dispatcher) dispatchWebSocket(opts options.Options) (Backend, error) {
	if err := validateWebSocket(opts); err != nil {
		return nil, err
	}

	url := WebSocketURL(opts)
	d.logger.Debug("dispatching websocket backend", "url", url, "username", opts.Username)

	h, err := d.newSocket(url, transport.AuthToken(opts.Username, opts.Password))
	if err != nil {
		return nil, err
	}
	return NewTransportBackend(h), nil
}

func (d *Dispatcher) dispatchSSH(opts options.Options) (Backend, error) {
	if err := validateSSH(opts); err != nil {
		return nil, err
	}

	cfg := transport.SSHConfig{
		Host:                  opts.Host,
		Port:                  opts.Port,
		Username:              opts.Username,
		Password:              opts.Password,
		Command:               opts.Param("command"),
		KnownHostsFile:        opts.Param("known_hosts"),
		InsecureIgnoreHostKey: opts.Param("insecure") == "true",
	}
	d.logger.Debug("dispatching ssh backend", "host", cfg.Host, "port", cfg.Port, "username", cfg.Username)

	h, err := d.newSSH(cfg)
	if err != nil {
		return nil, err
	}
	return NewTransportBackend(h), nil
}

// WebSocketURL reconstructs the endpoint URL from resolved options.
// The default protocol maps to "wss:". A "path" param overrides
// [WebSocketPath].
func WebSocketURL(opts options.Options) string {
	scheme := strings.TrimSuffix(opts.Protocol, ":")
	if scheme == "" {
		scheme = "wss"
	}

	host := opts.Host
	if opts.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(opts.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	path := opts.Param("path")
	if path == "" {
		path = WebSocketPath
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return scheme + "://" + host + path
}
