package audit

import "context"

// Subject identifies who an event is about. Both fields are optional.
type Subject struct {
	UserID    string
	SessionID string
}

// record logs an event of type t about s.
func (l *Log) record(ctx context.Context, t Type, s Subject, details map[string]string) Event {
	return l.Log(ctx, Event{
		Type:      t,
		UserID:    s.UserID,
		SessionID: s.SessionID,
		Details:   details,
	})
}

// LoginSuccess records a committed login.
func (l *Log) LoginSuccess(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeLoginSuccess, s, details)
}

// LoginFailure records a rejected or abandoned login attempt.
func (l *Log) LoginFailure(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeLoginFailure, s, details)
}

// Logout records a session teardown requested by the user.
func (l *Log) Logout(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeLogout, s, details)
}

// SignupSuccess records a created account.
func (l *Log) SignupSuccess(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeSignupSuccess, s, details)
}

// SignupFailure records a rejected signup.
func (l *Log) SignupFailure(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeSignupFailure, s, details)
}

// TokenRefreshSuccess records a replaced token pair.
func (l *Log) TokenRefreshSuccess(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeTokenRefreshSuccess, s, details)
}

// TokenRefreshFailure records a refresh that ended or would have ended the session.
func (l *Log) TokenRefreshFailure(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeTokenRefreshFailure, s, details)
}

// SessionExpired records a session ended by inactivity or token expiry.
func (l *Log) SessionExpired(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeSessionExpired, s, details)
}

// AccountLocked records the failure that engaged the lockout.
func (l *Log) AccountLocked(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeAccountLocked, s, details)
}

// SecurityViolation records a policy breach such as a rate limit trip.
func (l *Log) SecurityViolation(ctx context.Context, s Subject, details map[string]string) Event {
	return l.record(ctx, TypeSecurityViolation, s, details)
}
