package options

import (
	"maps"
	"strconv"
	"strings"
)

const (
	// DefaultProtocol is the transport scheme used when no layer sets one.
	DefaultProtocol = "wss:"

	// DefaultUsername is the account name devices ship with.
	DefaultUsername = "admin"

	// DefaultLogLevel is the diagnostic verbosity applied on connect.
	DefaultLogLevel = "warn"
)

// Options holds the parameters of a single connection attempt.
//
// Every field is optional until resolution. The zero value of a field means
// "unset" and never overrides a value supplied by a lower-precedence layer.
type Options struct {
	// Protocol is the URL scheme including the trailing colon (e.g. "wss:").
	Protocol string `yaml:"protocol,omitempty" json:"protocol,omitempty"`

	// Host is the hostname or IP address of the remote device.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the TCP port. Zero selects the transport default.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Username for authentication.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// Password for authentication.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// LogLevel is the diagnostic verbosity applied when connecting
	// (trace, debug, info, warn, error, silent).
	LogLevel string `yaml:"loglevel,omitempty" json:"loglevel,omitempty"`

	// Params carries transport-specific parameters. Keys are not validated
	// here; the selected backend interprets them.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Defaults returns the built-in defaults layer.
// A fresh value is returned on every call so callers cannot mutate it.
func Defaults() Options {
	return Options{
		Protocol: DefaultProtocol,
		Username: DefaultUsername,
		LogLevel: DefaultLogLevel,
	}
}

// Param returns the transport parameter stored under key.
func (o Options) Param(key string) string {
	return o.Params[key]
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	o.Params = maps.Clone(o.Params)
	return o
}

// Equal reports whether o and other hold the same values.
// A nil and an empty Params map compare equal.
func (o Options) Equal(other Options) bool {
	if len(o.Params) != len(other.Params) {
		return false
	}
	for k, v := range o.Params {
		if ov, ok := other.Params[k]; !ok || ov != v {
			return false
		}
	}
	return o.Protocol == other.Protocol &&
		o.Host == other.Host &&
		o.Port == other.Port &&
		o.Username == other.Username &&
		o.Password == other.Password &&
		o.LogLevel == other.LogLevel
}

// String returns a description of o with the password masked.
func (o Options) String() string {
	var b strings.Builder
	b.WriteString(o.Protocol)
	b.WriteString("//")
	if o.Username != "" {
		b.WriteString(o.Username)
		if o.Password != "" {
			b.WriteString(":****")
		}
		b.WriteByte('@')
	}
	b.WriteString(o.Host)
	if o.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(o.Port))
	}
	return b.String()
}
