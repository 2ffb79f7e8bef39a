package goSession

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

/*
====================================
LOGOUT / TEARDOWN
====================================
*/

// Logout ends the session. Local state and storage are cleared first; the
// remote logout is best effort and its failure is only logged.
//
// The <prefix>_security key is the one key that can survive: failed login
// attempts and an active lockout are written back after the clear, so
// logging out never resets the lockout policy. After a successful login
// the counters are zero and nothing is left behind.
func (e *Engine) Logout(ctx context.Context) {
	defer e.recoverOp("logout", nil)
	if !e.beginOp(false) {
		return
	}
	defer e.endOp(false)

	e.commitMu.Lock()
	e.mu.RLock()
	user, tokens, sessionID := e.state.user, e.state.tokens, e.state.sessionID
	e.mu.RUnlock()
	e.teardownLocked(ctx)
	e.commitMu.Unlock()
	e.notify()

	remote := "skipped"
	if tokens != nil && tokens.AccessToken != "" {
		_, apiErr := callAPI(ctx, e, "logout", func(c context.Context) (struct{}, error) {
			return struct{}{}, e.api.Logout(c, tokens.AccessToken)
		})
		if apiErr != nil {
			remote = "failed"
			e.metrics.Inc(MetricLogoutRemoteFailure)
			e.logger.Warn("remote logout failed", zap.String("code", string(apiErr.Code)), zap.Error(apiErr))
		} else {
			remote = "ok"
		}
	}

	subj := audit.Subject{SessionID: sessionID}
	if user != nil {
		subj.UserID = user.ID
	}
	e.metrics.Inc(MetricLogout)
	e.audit(ctx, (*audit.Log).Logout, subj, map[string]string{"remote_logout": remote})
}

// teardownLocked resets the session to initial-but-initialized and clears
// storage. Pending failed attempts and a lock still in force survive, so a
// teardown cannot be used to reset the lockout count. Callers hold commitMu.
func (e *Engine) teardownLocked(ctx context.Context) {
	e.teardownEpoch++
	e.stopSchedulerLocked()

	if err := e.auth.ClearAll(ctx); err != nil {
		e.logger.Warn("clear session storage failed", zap.Error(err))
	}

	now := e.now()
	e.mu.Lock()
	sec := e.state.security
	if sec.IsLocked && !now.Before(sec.LockoutUntil) {
		sec, _, _ = e.lockout.Check(sec, now)
	}
	e.state = sessionState{
		initialized: e.state.initialized,
		loadingOps:  e.state.loadingOps,
		authOps:     e.state.authOps,
		refreshing:  e.state.refreshing,
		errors:      e.state.errors,
		security:    sec,
	}
	e.mu.Unlock()

	if sec.IsLocked || sec.LoginAttempts > 0 {
		if err := e.auth.SetSecurity(ctx, sec); err != nil {
			e.logger.Warn("restore security counters failed", zap.Error(err))
		}
	}
}

/*
====================================
REFRESH
====================================
*/

// RefreshToken exchanges the refresh token for a new pair. Any failure that
// survives the retry budget tears the session down.
func (e *Engine) RefreshToken(ctx context.Context) (ok bool) {
	defer e.recoverOp("refresh", &ok)
	if !e.beginOp(false) {
		return false
	}
	defer e.endOp(false)

	return e.refresh(ctx, true)
}

// refresh collapses concurrent callers into one remote exchange. touch
// marks the refresh as user driven, which counts as activity.
func (e *Engine) refresh(ctx context.Context, touch bool) bool {
	v, _, _ := e.refreshGroup.Do("refresh", func() (any, error) {
		return e.doRefresh(ctx, touch), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (e *Engine) doRefresh(ctx context.Context, touch bool) bool {
	if ctx.Err() != nil {
		return false
	}
	td, se := e.epochs()
	subj := e.subject()

	e.mu.RLock()
	current := e.state.tokens.Clone()
	e.mu.RUnlock()

	if current == nil && !touch {
		// A background check that outlived its session.
		return false
	}
	if current == nil || current.RefreshToken == "" {
		return e.failRefresh(ctx, td, se, autherr.New(autherr.CodeTokenInvalid, "No refresh token available"), 0)
	}
	if !current.RefreshExpiresAt.IsZero() && e.lifecycle.IsExpired(current.RefreshExpiresAt) {
		return e.failRefresh(ctx, td, se, autherr.New(autherr.CodeTokenExpired, ""), 0)
	}

	e.setRefreshing(true)
	defer e.setRefreshing(false)

	maxAttempts := e.config.Token.MaxRefreshAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := e.config.Token.RefreshRetryDelay

	var (
		pair     *identity.TokenPair
		apiErr   *AuthError
		attempts int
	)
	for attempts = 1; ; attempts++ {
		pair, apiErr = callAPI(ctx, e, "refresh", func(c context.Context) (*identity.TokenPair, error) {
			return e.api.RefreshToken(c, current.RefreshToken)
		})
		if apiErr == nil && !pair.Valid() {
			apiErr = autherr.New(autherr.CodeServer, "The identity service returned an incomplete token pair")
		}
		if apiErr == nil || !autherr.Retryable(apiErr.Code) || attempts >= maxAttempts || ctx.Err() != nil {
			break
		}
		e.metrics.Inc(MetricRefreshRetry)
		e.logger.Debug("token refresh failed, retrying",
			zap.Int("attempt", attempts),
			zap.String("code", string(apiErr.Code)),
			zap.Duration("backoff", delay),
		)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			delay *= 2
		}
	}

	if apiErr != nil {
		if ctx.Err() != nil {
			return e.abandonRefresh(ctx, td, se, subj, apiErr, attempts)
		}
		return e.failRefresh(ctx, td, se, apiErr, attempts)
	}

	details := map[string]string{"attempts": itoa(attempts)}

	e.commitMu.Lock()
	if e.teardownEpoch != td || e.sessionEpoch != se {
		e.commitMu.Unlock()
		e.logger.Info("token refresh result superseded")
		e.auditSuperseded(ctx, (*audit.Log).TokenRefreshSuccess, subj, details)
		return false
	}
	if err := e.auth.SetTokens(ctx, pair); err != nil {
		e.logger.Warn("persist refreshed tokens failed", zap.Error(err))
	}
	now := e.now()
	e.mu.Lock()
	e.state.tokens = pair.Clone()
	if touch && now.After(e.state.lastActivity) {
		e.state.lastActivity = now
	}
	desc := &storage.SessionDescriptor{SessionID: e.state.sessionID, LastActivity: e.state.lastActivity}
	e.mu.Unlock()
	if touch && desc.SessionID != "" {
		if err := e.auth.SetSession(ctx, desc); err != nil {
			e.logger.Warn("persist session descriptor failed", zap.Error(err))
		}
	}
	e.commitMu.Unlock()

	e.metrics.Inc(MetricRefreshSuccess)
	e.audit(ctx, (*audit.Log).TokenRefreshSuccess, subj, details)
	return true
}

// abandonRefresh handles a refresh whose context ended mid-call. The
// session is left for the next check. When the context ended because the
// session was torn down or the engine closed, the cancellation is not an
// error anyone needs to see.
func (e *Engine) abandonRefresh(ctx context.Context, td, se uint64, subj audit.Subject, cause *AuthError, attempts int) bool {
	curTD, curSE := e.epochs()
	if curTD != td || curSE != se || e.closed.Load() {
		details := failureDetails("", cause, "refresh")
		details["attempts"] = itoa(attempts)
		e.auditSuperseded(context.WithoutCancel(ctx), (*audit.Log).TokenRefreshFailure, subj, details)
		e.logger.Debug("token refresh cancelled by teardown")
		return false
	}
	e.recordErrors(cause)
	e.logger.Info("token refresh abandoned", zap.Error(ctx.Err()))
	return false
}

// failRefresh tears the session down, unless the session it was refreshing
// is already gone or replaced.
func (e *Engine) failRefresh(ctx context.Context, td, se uint64, cause *AuthError, attempts int) bool {
	subj := e.subject()
	details := failureDetails("", cause, "refresh")
	details["attempts"] = itoa(attempts)

	e.commitMu.Lock()
	if e.teardownEpoch != td || e.sessionEpoch != se {
		e.commitMu.Unlock()
		e.auditSuperseded(ctx, (*audit.Log).TokenRefreshFailure, subj, details)
		return false
	}
	e.teardownLocked(ctx)
	e.commitMu.Unlock()

	e.recordErrors(cause)
	e.metrics.Inc(MetricRefreshFailure)
	e.audit(ctx, (*audit.Log).TokenRefreshFailure, subj, details)
	e.logger.Warn("token refresh failed, session ended",
		zap.String("code", string(cause.Code)),
		zap.Int("attempts", attempts),
	)
	e.notify()
	return false
}

func (e *Engine) setRefreshing(v bool) {
	e.mu.Lock()
	e.state.refreshing = v
	e.mu.Unlock()
	e.notify()
}

/*
====================================
VALIDATION / ACTIVITY
====================================
*/

// ValidateSession reports whether the session is still usable. Inactivity
// beyond Session.Timeout ends it regardless of token expiry; otherwise a
// due refresh is performed. Recorded errors are left alone.
func (e *Engine) ValidateSession(ctx context.Context) (ok bool) {
	defer e.recoverOp("validate_session", &ok)
	if e.closed.Load() {
		return false
	}
	return e.validateSession(ctx)
}

func (e *Engine) validateSession(ctx context.Context) bool {
	td, se := e.epochs()
	now := e.now()

	e.mu.RLock()
	present := e.state.user != nil && e.state.tokens != nil
	var expiresAt, last time.Time
	if present {
		expiresAt = e.state.tokens.ExpiresAt
		last = e.state.lastActivity
	}
	e.mu.RUnlock()

	if !present {
		return false
	}
	if timeout := e.config.Session.Timeout; timeout > 0 && now.Sub(last) > timeout {
		return e.expireSession(ctx, td, se, "inactivity")
	}
	if e.lifecycle.ShouldRefresh(expiresAt) {
		return e.refresh(ctx, false)
	}
	return true
}

func (e *Engine) expireSession(ctx context.Context, td, se uint64, reason string) bool {
	subj := e.subject()

	e.commitMu.Lock()
	if e.teardownEpoch != td || e.sessionEpoch != se {
		e.commitMu.Unlock()
		return e.IsAuthenticated()
	}
	e.teardownLocked(ctx)
	e.commitMu.Unlock()

	e.recordErrors(autherr.New(autherr.CodeSessionExpired, ""))
	e.metrics.Inc(MetricSessionExpired)
	e.audit(ctx, (*audit.Log).SessionExpired, subj, map[string]string{"reason": reason})
	e.logger.Info("session expired", zap.String("reason", reason), zap.String("session_id", subj.SessionID))
	e.notify()
	return false
}

// UpdateLastActivity records user interaction. Bursts coalesce: while one
// caller is writing the descriptor, others only bump the in-memory time and
// the writer picks it up before it returns.
func (e *Engine) UpdateLastActivity(ctx context.Context) {
	if e.closed.Load() {
		return
	}
	now := e.now()
	e.mu.Lock()
	if e.state.user == nil || e.state.tokens == nil {
		e.mu.Unlock()
		return
	}
	if now.After(e.state.lastActivity) {
		e.state.lastActivity = now
	}
	e.mu.Unlock()

	e.activityDirty.Store(true)
	if !e.activityBusy.CompareAndSwap(false, true) {
		e.metrics.Inc(MetricActivityCoalesced)
		return
	}
	for {
		e.activityDirty.Store(false)
		e.persistActivity(ctx)
		e.activityBusy.Store(false)
		if !e.activityDirty.Load() || !e.activityBusy.CompareAndSwap(false, true) {
			return
		}
	}
}

func (e *Engine) persistActivity(ctx context.Context) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	e.mu.RLock()
	desc := &storage.SessionDescriptor{SessionID: e.state.sessionID, LastActivity: e.state.lastActivity}
	present := e.state.user != nil && e.state.tokens != nil
	e.mu.RUnlock()
	if !present || desc.SessionID == "" {
		return
	}
	if err := e.auth.SetSession(ctx, desc); err != nil {
		e.logger.Warn("persist session descriptor failed", zap.Error(err))
	}
}

/*
====================================
INITIALIZE
====================================
*/

type restoreOutcome int

const (
	restoreEmpty restoreOutcome = iota
	restoreAuthenticated
	restoreTokensExpired
	restoreIdle
	restoreFailed
)

// Initialize restores the session from storage. It always leaves the engine
// initialized: unreadable storage is wiped and INITIALIZATION_FAILED is
// recorded. Calls after the first only report the current state.
func (e *Engine) Initialize(ctx context.Context) (ok bool) {
	e.mu.RLock()
	done := e.state.initialized
	e.mu.RUnlock()
	if done && !e.closed.Load() {
		return e.IsAuthenticated()
	}

	if !e.beginOp(false) {
		return false
	}
	defer e.endOp(false)
	defer e.markInitialized()
	defer e.recoverOp("initialize", &ok)

	e.commitMu.Lock()
	e.mu.RLock()
	done = e.state.initialized
	e.mu.RUnlock()
	if done {
		e.commitMu.Unlock()
		return e.IsAuthenticated()
	}
	outcome, subj, err := e.restoreLocked(ctx)
	e.mu.Lock()
	e.state.initialized = true
	e.mu.Unlock()
	e.commitMu.Unlock()

	switch outcome {
	case restoreAuthenticated:
		e.logger.Debug("session restored", zap.String("user_id", subj.UserID), zap.String("session_id", subj.SessionID))
		return true
	case restoreTokensExpired:
		e.metrics.Inc(MetricSessionExpired)
		e.audit(ctx, (*audit.Log).SessionExpired, subj, map[string]string{"reason": "token_expired"})
		e.logger.Info("stored tokens expired, starting unauthenticated")
	case restoreIdle:
		e.recordErrors(autherr.New(autherr.CodeSessionExpired, ""))
		e.metrics.Inc(MetricSessionExpired)
		e.audit(ctx, (*audit.Log).SessionExpired, subj, map[string]string{"reason": "inactivity"})
		e.logger.Info("stored session idle past timeout, starting unauthenticated")
	case restoreFailed:
		e.recordErrors(autherr.Wrap(autherr.CodeInitializationFailed, "", err))
		e.logger.Error("session restore failed, storage wiped", zap.Error(err))
	}
	return false
}

func (e *Engine) markInitialized() {
	e.mu.Lock()
	e.state.initialized = true
	e.mu.Unlock()
}

// restoreLocked reads the stored session back. Callers hold commitMu.
func (e *Engine) restoreLocked(ctx context.Context) (out restoreOutcome, subj audit.Subject, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restore panicked: %v", r)
			out = restoreFailed
			e.failInitLocked(ctx)
		}
	}()

	sec, err := e.auth.Security(ctx)
	if err != nil {
		e.failInitLocked(ctx)
		return restoreFailed, subj, err
	}
	tokens, err := e.auth.Tokens(ctx)
	if err != nil {
		e.failInitLocked(ctx)
		return restoreFailed, subj, err
	}
	user, err := e.auth.User(ctx)
	if err != nil {
		e.failInitLocked(ctx)
		return restoreFailed, subj, err
	}
	desc, err := e.auth.Session(ctx)
	if err != nil {
		e.failInitLocked(ctx)
		return restoreFailed, subj, err
	}

	e.mu.Lock()
	e.state.security = sec
	e.mu.Unlock()

	if tokens == nil || user == nil {
		if tokens != nil || user != nil || desc != nil {
			e.logger.Warn("partial session in storage discarded")
			for _, clr := range []func(context.Context) error{e.auth.ClearTokens, e.auth.ClearUser, e.auth.ClearSession} {
				if cerr := clr(ctx); cerr != nil {
					e.logger.Warn("clear partial session failed", zap.Error(cerr))
				}
			}
		}
		return restoreEmpty, subj, nil
	}

	subj.UserID = user.ID
	if desc != nil {
		subj.SessionID = desc.SessionID
	}

	if e.lifecycle.IsExpired(tokens.ExpiresAt) {
		e.teardownLocked(ctx)
		return restoreTokensExpired, subj, nil
	}

	now := e.now()
	if timeout := e.config.Session.Timeout; desc != nil && timeout > 0 && now.Sub(desc.LastActivity) > timeout {
		e.teardownLocked(ctx)
		return restoreIdle, subj, nil
	}

	if subj.SessionID == "" {
		subj.SessionID = uuid.NewString()
	}
	e.sessionEpoch++
	e.mu.Lock()
	e.state.user = user
	e.state.tokens = tokens
	e.state.sessionID = subj.SessionID
	e.state.lastActivity = now
	e.mu.Unlock()

	if err := e.auth.SetSession(ctx, &storage.SessionDescriptor{SessionID: subj.SessionID, LastActivity: now}); err != nil {
		e.logger.Warn("persist session descriptor failed", zap.Error(err))
	}
	e.startSchedulerLocked()
	return restoreAuthenticated, subj, nil
}

// failInitLocked wipes storage after an unreadable restore. Callers hold
// commitMu.
func (e *Engine) failInitLocked(ctx context.Context) {
	e.teardownEpoch++
	e.stopSchedulerLocked()
	if err := e.auth.ClearAll(ctx); err != nil {
		e.logger.Warn("clear session storage failed", zap.Error(err))
	}
	e.mu.Lock()
	e.state = sessionState{
		initialized: e.state.initialized,
		loadingOps:  e.state.loadingOps,
		authOps:     e.state.authOps,
		errors:      e.state.errors,
	}
	e.mu.Unlock()
}
