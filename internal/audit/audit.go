package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"maps"
	"strconv"
	"sync"
	"time"
)

// Type names a security-relevant occurrence.
type Type string

const (
	TypeLoginSuccess        Type = "login_success"
	TypeLoginFailure        Type = "login_failure"
	TypeLogout              Type = "logout"
	TypeSignupSuccess       Type = "signup_success"
	TypeSignupFailure       Type = "signup_failure"
	TypeTokenRefreshSuccess Type = "token_refresh_success"
	TypeTokenRefreshFailure Type = "token_refresh_failure"
	TypeSessionExpired      Type = "session_expired"
	TypeAccountLocked       Type = "account_locked"
	TypeSecurityViolation   Type = "security_violation"
)

// Types lists every event type in declaration order.
var Types = []Type{
	TypeLoginSuccess,
	TypeLoginFailure,
	TypeLogout,
	TypeSignupSuccess,
	TypeSignupFailure,
	TypeTokenRefreshSuccess,
	TypeTokenRefreshFailure,
	TypeSessionExpired,
	TypeAccountLocked,
	TypeSecurityViolation,
}

// Severity grades an event for monitoring.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// DefaultSeverity is the severity the convenience constructors assign to t.
func DefaultSeverity(t Type) Severity {
	switch t {
	case TypeLoginFailure, TypeSignupFailure, TypeTokenRefreshFailure:
		return SeverityWarning
	case TypeAccountLocked:
		return SeverityError
	case TypeSecurityViolation:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Event is an immutable audit record.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	UserAgent string            `json:"user_agent,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Severity  Severity          `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
}

func (e Event) clone() Event {
	e.Details = maps.Clone(e.Details)
	return e
}

// NewID returns an id of the form audit_<unix millis>_<random>.
func NewID(now time.Time) string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	return "audit_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + hex.EncodeToString(b[:])
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

// Emit discards event.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a sink with a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit blocks until event is queued or ctx is done.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the channel for consumers.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink writes events to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit writes event as one line. Marshal and write errors are ignored.
func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

// Emit forwards event to each non-nil sink.
func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
