package client

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smnsjas/go-xapi/backend"
	"github.com/smnsjas/go-xapi/options"
)

// Connect outcomes reported in the "outcome" label.
const (
	OutcomeLabelOK                  = "ok"
	OutcomeLabelInvalidArguments    = "invalid_arguments"
	OutcomeLabelUnsupportedProtocol = "unsupported_protocol"
	OutcomeLabelInvalidOptions      = "invalid_options"
	OutcomeLabelError               = "error"
)

type connectMetrics struct {
	attempts *prometheus.CounterVec
}

// newConnectMetrics registers the connect counter with reg. If an identical
// collector is already registered it is reused, so several connectors can
// share one registry.
func newConnectMetrics(reg prometheus.Registerer) *connectMetrics {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xapi",
		Name:      "connect_attempts_total",
		Help:      "Connect calls by resolved protocol and outcome.",
	}, []string{"protocol", "outcome"})

	if err := reg.Register(attempts); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil
		}
		attempts = existing
	}
	return &connectMetrics{attempts: attempts}
}

func (m *connectMetrics) observe(protocol string, err error) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(backend.ProtocolName(protocol), outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return OutcomeLabelOK
	case errors.Is(err, options.ErrInvalidArguments):
		return OutcomeLabelInvalidArguments
	case errors.Is(err, backend.ErrUnsupportedProtocol):
		return OutcomeLabelUnsupportedProtocol
	case errors.Is(err, backend.ErrInvalidOptions):
		return OutcomeLabelInvalidOptions
	default:
		return OutcomeLabelError
	}
}
