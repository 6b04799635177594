package client

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smnsjas/go-xapi/backend"
)

// Audit event types
const (
	EventConnection = "connection"
	EventCommand    = "command"
)

// Audit event subtypes
const (
	SubtypeConnAttempt     = "attempt"
	SubtypeConnInitialized = "initialized"
	SubtypeConnEstablished = "established"
	SubtypeConnFailed      = "failed"
	SubtypeConnClosed      = "closed"
	SubtypeCommandExecute  = "execute"
	SubtypeCommandComplete = "complete"
	SubtypeCommandFailed   = "failed"
)

// Audit event outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeAttempt = "attempt"
)

// Audit event severities
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// AuditSource identifies this library in audit events.
const AuditSource = "go-xapi"

// AuditEvent is a structured record of a connection or command event.
type AuditEvent struct {
	Timestamp string `json:"timestamp"` // RFC 3339 UTC
	EventType string `json:"event_type"`
	Subtype   string `json:"subtype"`
	Severity  string `json:"severity"`

	User          string `json:"user,omitempty"`
	Source        string `json:"source"`
	Target        string `json:"target"`
	CorrelationID string `json:"correlation_id"`

	Outcome string         `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
}

// String returns the JSON representation of the event.
func (e *AuditEvent) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// AuditLogger writes audit events for one connection attempt. All events
// share a correlation ID. A nil *AuditLogger and a logger built without a
// sink discard everything.
type AuditLogger struct {
	logger        *slog.Logger
	user          string
	target        string
	correlationID string
	now           func() time.Time
}

// NewAuditLogger creates an audit logger writing to logger with a fresh
// correlation ID.
func NewAuditLogger(logger *slog.Logger, user, target string) *AuditLogger {
	return &AuditLogger{
		logger:        logger,
		user:          user,
		target:        target,
		correlationID: uuid.NewString(),
		now:           time.Now,
	}
}

// CorrelationID returns the ID shared by the logger's events.
func (l *AuditLogger) CorrelationID() string {
	if l == nil {
		return ""
	}
	return l.correlationID
}

// LogEvent builds and writes an audit event.
func (l *AuditLogger) LogEvent(eventType, subtype, severity, outcome string, details map[string]any) {
	if l == nil || l.logger == nil {
		return
	}

	event := &AuditEvent{
		Timestamp:     l.now().UTC().Format(time.RFC3339),
		EventType:     eventType,
		Subtype:       subtype,
		Severity:      severity,
		User:          l.user,
		Source:        AuditSource,
		Target:        l.target,
		CorrelationID: l.correlationID,
		Outcome:       outcome,
		Details:       details,
	}

	switch severity {
	case SeverityWarning:
		l.logger.Warn("AuditEvent", "event", event)
	case SeverityError:
		l.logger.Error("AuditEvent", "event", event)
	default:
		l.logger.Info("AuditEvent", "event", event)
	}
}

// LogConnection logs a connection event.
func (l *AuditLogger) LogConnection(subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventConnection, subtype, severity, outcome, details)
}

// LogCommand logs a command event.
func (l *AuditLogger) LogCommand(subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventCommand, subtype, severity, outcome, details)
}

// auditedBackend carries the audit logger of the connect attempt that built
// the backend, so the client's events share its correlation ID.
type auditedBackend struct {
	backend.Backend
	audit *AuditLogger
}

// AuditLogger returns the attempt's audit logger.
func (b *auditedBackend) AuditLogger() *AuditLogger {
	return b.audit
}

// auditCarrier is implemented by backends that carry an audit logger.
type auditCarrier interface {
	AuditLogger() *AuditLogger
}
