package goSession

import (
	"io"

	"github.com/MrEthical07/goSession/internal/audit"
	"go.uber.org/zap"
)

// Audit types re-exported for callers of Engine.AuditLog.
type (
	AuditEvent    = audit.Event
	AuditType     = audit.Type
	AuditSeverity = audit.Severity
	AuditFilter   = audit.Filter
	AuditStats    = audit.Stats
	AuditLog      = audit.Log
	AuditSink     = audit.Sink
)

const (
	AuditLoginSuccess        = audit.TypeLoginSuccess
	AuditLoginFailure        = audit.TypeLoginFailure
	AuditLogout              = audit.TypeLogout
	AuditSignupSuccess       = audit.TypeSignupSuccess
	AuditSignupFailure       = audit.TypeSignupFailure
	AuditTokenRefreshSuccess = audit.TypeTokenRefreshSuccess
	AuditTokenRefreshFailure = audit.TypeTokenRefreshFailure
	AuditSessionExpired      = audit.TypeSessionExpired
	AuditAccountLocked       = audit.TypeAccountLocked
	AuditSecurityViolation   = audit.TypeSecurityViolation
)

const (
	AuditInfo     = audit.SeverityInfo
	AuditWarning  = audit.SeverityWarning
	AuditError    = audit.SeverityError
	AuditCritical = audit.SeverityCritical
)

// NewChannelSink buffers forwarded events on a channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per forwarded event.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewKafkaSink publishes forwarded events to topic. It returns nil when
// brokers or topic are missing.
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *audit.KafkaSink {
	return audit.NewKafkaSink(brokers, topic, logger)
}
