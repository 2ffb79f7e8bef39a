package goSession

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goSession/internal/audit"
)

// auditFn is one of the audit.Log convenience methods, e.g.
// (*audit.Log).LoginSuccess.
type auditFn func(*audit.Log, context.Context, audit.Subject, map[string]string) audit.Event

func (e *Engine) audit(ctx context.Context, fn auditFn, s audit.Subject, details map[string]string) {
	if e.auditLog == nil {
		return
	}
	fn(e.auditLog, ctx, s, details)
}

// auditSuperseded records a result that lost a race with a newer
// transition. The event still lands; the state change does not.
func (e *Engine) auditSuperseded(ctx context.Context, fn auditFn, s audit.Subject, details map[string]string) {
	e.metrics.Inc(MetricStaleResultDiscarded)
	if details == nil {
		details = map[string]string{}
	}
	details["superseded"] = "true"
	e.audit(ctx, fn, s, details)
}

func (e *Engine) subject() audit.Subject {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := audit.Subject{SessionID: e.state.sessionID}
	if e.state.user != nil {
		s.UserID = e.state.user.ID
	}
	return s
}

func failureDetails(email string, err *AuthError, stage string) map[string]string {
	d := map[string]string{"stage": stage}
	if email != "" {
		d["email"] = email
	}
	if err != nil {
		d["code"] = string(err.Code)
		if err.Field != "" {
			d["field"] = err.Field
		}
	}
	return d
}

func itoa(n int) string { return strconv.Itoa(n) }
