package goSession

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reasonAutoLogin = "auto_login_after_signup"

// Login authenticates creds. It reports false, with State.Error populated,
// on any failure: an active lockout, invalid credentials, a throttled
// burst or an identity API error. Credentials that fail validation never
// reach the identity API.
func (e *Engine) Login(ctx context.Context, creds LoginCredentials) (ok bool) {
	defer e.recoverOp("login", &ok)
	if !e.beginOp(true) {
		return false
	}
	defer e.endOp(true)

	return e.login(ctx, creds, "")
}

func (e *Engine) login(ctx context.Context, creds LoginCredentials, reason string) bool {
	email := strings.TrimSpace(creds.Email)
	now := e.now()

	// Lockout gate. An elapsed lock is cleared here, before credentials are
	// looked at.
	var lockErr *AuthError
	var cleared bool
	e.updateSecurity(ctx, func(c storage.SecurityCounters) storage.SecurityCounters {
		next, wasCleared, err := e.lockout.Check(c, now)
		lockErr, cleared = err, wasCleared
		return next
	})
	if cleared {
		e.logger.Info("lockout window elapsed, counters reset")
	}
	if lockErr != nil {
		e.recordErrors(lockErr)
		e.metrics.Inc(MetricLoginLocked)
		d := failureDetails(email, lockErr, "lockout")
		if reason != "" {
			d["reason"] = reason
		}
		e.audit(ctx, (*audit.Log).LoginFailure, audit.Subject{}, d)
		return false
	}

	if errs := e.validator.ValidateLoginCredentials(creds); len(errs) > 0 {
		e.recordErrors(errs...)
		e.loginFailed(ctx, email, errs[0], "validation", reason)
		return false
	}

	if !e.allowAttempt(ctx, email, "login") {
		return false
	}

	epoch, _ := e.epochs()
	res, apiErr := callAPI(ctx, e, "login", func(c context.Context) (*identity.LoginResult, error) {
		return e.api.Login(c, email, creds.Password)
	})
	if apiErr == nil && (res == nil || !res.User.Valid() || !res.Tokens.Valid()) {
		apiErr = autherr.New(autherr.CodeServer, "The identity service returned an incomplete login response")
	}
	if apiErr != nil {
		e.recordErrors(apiErr)
		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the credentials.
			d := failureDetails(email, apiErr, "cancelled")
			if reason != "" {
				d["reason"] = reason
			}
			e.audit(context.WithoutCancel(ctx), (*audit.Log).LoginFailure, audit.Subject{}, d)
			e.logger.Info("login abandoned by caller", zap.String("email", logging.MaskEmail(email)))
			return false
		}
		e.loginFailed(ctx, email, apiErr, "api", reason)
		return false
	}

	return e.commitLogin(ctx, epoch, res, email, reason)
}

// allowAttempt applies the burst limiter, when enabled.
func (e *Engine) allowAttempt(ctx context.Context, email, op string) bool {
	if err := e.limiter.Allow(email); err == nil {
		return true
	}
	ae := autherr.New(autherr.CodeRateLimited, "")
	e.recordErrors(ae)
	e.metrics.Inc(MetricLoginRateLimited)
	e.audit(ctx, (*audit.Log).SecurityViolation, audit.Subject{}, map[string]string{
		"email":     email,
		"operation": op,
		"code":      string(ae.Code),
	})
	e.logger.Warn("attempt throttled", zap.String("op", op), zap.String("email", logging.MaskEmail(email)))
	return false
}

// loginFailed counts the failure toward lockout. The failure that reaches
// the ceiling, and only that one, emits the account-locked event.
func (e *Engine) loginFailed(ctx context.Context, email string, cause *AuthError, stage, reason string) {
	now := e.now()
	var lockedNow bool
	next := e.updateSecurity(ctx, func(c storage.SecurityCounters) storage.SecurityCounters {
		n, locked := e.lockout.RecordFailure(c, now)
		lockedNow = locked
		return n
	})

	e.metrics.Inc(MetricLoginFailure)
	d := failureDetails(email, cause, stage)
	d["attempts"] = itoa(next.LoginAttempts)
	if reason != "" {
		d["reason"] = reason
	}
	e.audit(ctx, (*audit.Log).LoginFailure, audit.Subject{}, d)

	if lockedNow {
		e.metrics.Inc(MetricAccountLocked)
		e.audit(ctx, (*audit.Log).AccountLocked, audit.Subject{}, map[string]string{
			"email":         email,
			"attempts":      itoa(next.LoginAttempts),
			"lockout_until": next.LockoutUntil.UTC().Format(time.RFC3339),
		})
		e.logger.Warn("account locked after repeated login failures",
			zap.String("email", logging.MaskEmail(email)),
			zap.Int("attempts", next.LoginAttempts),
			zap.Time("lockout_until", next.LockoutUntil),
		)
	}
}

// commitLogin installs a successful login unless a teardown happened while
// the call was in flight. Between two logins the later commit wins.
func (e *Engine) commitLogin(ctx context.Context, epoch uint64, res *identity.LoginResult, email, reason string) bool {
	user := res.User.Clone()
	tokens := res.Tokens.Clone()
	sessionID := uuid.NewString()
	subject := audit.Subject{UserID: user.ID, SessionID: sessionID}

	details := map[string]string{"email": email}
	if reason != "" {
		details["reason"] = reason
	}

	e.commitMu.Lock()
	if e.teardownEpoch != epoch {
		e.commitMu.Unlock()
		e.logger.Info("login result superseded by a newer logout")
		e.auditSuperseded(ctx, (*audit.Log).LoginSuccess, subject, details)
		return false
	}
	e.sessionEpoch++
	now := e.now()

	if err := e.auth.SetUser(ctx, user); err != nil {
		e.logger.Warn("persist user failed", zap.Error(err))
	}
	if err := e.auth.SetTokens(ctx, tokens); err != nil {
		e.logger.Warn("persist tokens failed", zap.Error(err))
	}
	if err := e.auth.SetSession(ctx, &storage.SessionDescriptor{SessionID: sessionID, LastActivity: now}); err != nil {
		e.logger.Warn("persist session descriptor failed", zap.Error(err))
	}
	cleared := e.lockout.RecordSuccess()
	if err := e.auth.SetSecurity(ctx, cleared); err != nil {
		e.logger.Warn("reset security counters failed", zap.Error(err))
	}

	e.mu.Lock()
	e.state.user = user
	e.state.tokens = tokens
	e.state.sessionID = sessionID
	e.state.lastActivity = now
	e.state.security = cleared
	e.mu.Unlock()

	e.startSchedulerLocked()
	e.commitMu.Unlock()

	e.limiter.Reset(email)
	e.metrics.Inc(MetricLoginSuccess)
	e.audit(ctx, (*audit.Log).LoginSuccess, subject, details)
	e.logger.Debug("session established", zap.String("user_id", user.ID), zap.String("session_id", sessionID))
	e.notify()
	return true
}

// Signup creates an account and then logs in with the same credentials.
// It reports true whenever the account was created, even if the follow-up
// login fails; in that case the new user is visible in State.User but the
// session stays unauthenticated and the login failure is in State.Errors.
func (e *Engine) Signup(ctx context.Context, creds SignupCredentials) (ok bool) {
	defer e.recoverOp("signup", &ok)
	if !e.beginOp(true) {
		return false
	}
	defer e.endOp(true)

	email := strings.TrimSpace(creds.Email)

	if errs := e.validator.ValidateSignupCredentials(creds); len(errs) > 0 {
		e.recordErrors(errs...)
		e.signupFailed(ctx, email, errs[0], "validation")
		return false
	}

	if !e.allowAttempt(ctx, email, "signup") {
		return false
	}

	user, apiErr := callAPI(ctx, e, "signup", func(c context.Context) (*identity.User, error) {
		return e.api.Signup(c, creds.Request())
	})
	if apiErr == nil && !user.Valid() {
		apiErr = autherr.New(autherr.CodeServer, "The identity service returned an incomplete account")
	}
	if apiErr != nil {
		e.recordErrors(apiErr)
		e.signupFailed(ctx, email, apiErr, "api")
		return false
	}

	e.metrics.Inc(MetricSignupSuccess)
	e.audit(ctx, (*audit.Log).SignupSuccess, audit.Subject{UserID: user.ID}, map[string]string{"email": email})

	if e.login(ctx, LoginCredentials{Email: email, Password: creds.Password}, reasonAutoLogin) {
		return true
	}

	e.metrics.Inc(MetricAutoLoginFailure)
	e.logger.Info("account created but automatic login failed", zap.String("user_id", user.ID))

	// The account exists, so the user is shown, but nothing is persisted
	// without tokens.
	e.commitMu.Lock()
	e.mu.Lock()
	if e.state.tokens == nil {
		e.state.user = user.Clone()
	}
	e.mu.Unlock()
	e.commitMu.Unlock()
	e.notify()
	return true
}

func (e *Engine) signupFailed(ctx context.Context, email string, cause *AuthError, stage string) {
	e.metrics.Inc(MetricSignupFailure)
	e.audit(ctx, (*audit.Log).SignupFailure, audit.Subject{}, failureDetails(email, cause, stage))
}
