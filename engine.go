package goSession

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/token"
	"github.com/MrEthical07/goSession/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Engine is the session manager. It owns the canonical session state; every
// other component only reads snapshots of it.
//
// Lock order is commitMu, then mu. commitMu serializes every transition that
// is visible in storage, and the two epochs it guards let a delayed login or
// refresh result detect that the session moved on while it was in flight.
type Engine struct {
	config     Config
	api        identity.API
	backend    storage.Backend
	ownBackend bool
	store      *storage.Storage
	auth       *storage.AuthStorage
	auditLog   *audit.Log
	dispatcher *audit.Dispatcher
	closers    []io.Closer
	lockout    limiters.Lockout
	limiter    *rate.Limiter
	validator  *validation.Validator
	lifecycle  token.Lifecycle
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.RWMutex
	state sessionState

	commitMu      sync.Mutex
	teardownEpoch uint64 // bumped by every teardown
	sessionEpoch  uint64 // bumped by every committed login
	schedCancel   context.CancelFunc
	schedWG       sync.WaitGroup

	refreshGroup singleflight.Group

	activityBusy  atomic.Bool
	activityDirty atomic.Bool

	listenersMu  sync.Mutex
	listeners    map[uint64]Listener
	nextListener uint64

	closed atomic.Bool
}

type sessionState struct {
	user   *User
	tokens *TokenPair

	initialized bool
	loadingOps  int
	authOps     int
	refreshing  bool

	errors []*AuthError

	sessionID    string
	lastActivity time.Time
	security     storage.SecurityCounters
}

func (s *sessionState) authenticated(now time.Time) bool {
	return s.user != nil && s.tokens != nil && now.Before(s.tokens.ExpiresAt)
}

func (s *sessionState) status(now time.Time) Status {
	switch {
	case !s.initialized:
		return StatusUninitialized
	case s.authOps > 0:
		return StatusAuthenticating
	case s.authenticated(now) && s.refreshing:
		return StatusRefreshing
	case s.authenticated(now):
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

// State returns a snapshot of the session.
func (e *Engine) State() State {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked(now)
}

func (e *Engine) snapshotLocked(now time.Time) State {
	s := &e.state
	out := State{
		User:             s.user.Clone(),
		Tokens:           s.tokens.Clone(),
		IsAuthenticated:  s.authenticated(now),
		IsInitialized:    s.initialized,
		IsLoading:        s.loadingOps > 0,
		IsRefreshing:     s.refreshing,
		SessionID:        s.sessionID,
		LastActivity:     s.lastActivity,
		LoginAttempts:    s.security.LoginAttempts,
		LastLoginAttempt: s.security.LastLoginAttempt,
		IsLocked:         s.security.IsLocked,
		LockoutUntil:     s.security.LockoutUntil,
		Status:           s.status(now),
	}
	if len(s.errors) > 0 {
		out.Errors = make([]*AuthError, len(s.errors))
		for i, err := range s.errors {
			c := *err
			out.Errors[i] = &c
		}
		out.Error = out.Errors[0]
	}
	return out
}

// Status reports the current state machine position.
func (e *Engine) Status() Status {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.status(now)
}

// IsAuthenticated is shorthand for State().IsAuthenticated.
func (e *Engine) IsAuthenticated() bool {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.authenticated(now)
}

// Subscribe registers fn for state change notifications. fn runs outside
// engine locks and may call back into the engine. The returned func
// unregisters it.
func (e *Engine) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	e.listenersMu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.listenersMu.Lock()
			delete(e.listeners, id)
			e.listenersMu.Unlock()
		})
	}
}

func (e *Engine) notify() {
	e.listenersMu.Lock()
	if len(e.listeners) == 0 {
		e.listenersMu.Unlock()
		return
	}
	fns := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.listenersMu.Unlock()

	snapshot := e.State()
	for _, fn := range fns {
		e.callListener(fn, snapshot)
	}
}

func (e *Engine) callListener(fn Listener, s State) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("state listener panicked", zap.Any("panic", r))
		}
	}()
	fn(s)
}

/*
====================================
ERRORS
====================================
*/

// recordErrors prepends errs, keeping their order, so errs[0] becomes
// State.Error.
func (e *Engine) recordErrors(errs ...*AuthError) {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := make([]*AuthError, 0, len(errs)+len(e.state.errors))
	for _, err := range errs {
		if err != nil {
			merged = append(merged, err)
		}
	}
	merged = append(merged, e.state.errors...)
	if len(merged) > maxErrors {
		merged = merged[:maxErrors]
	}
	e.state.errors = merged
}

func (e *Engine) clearErrors() {
	e.mu.Lock()
	e.state.errors = nil
	e.mu.Unlock()
}

// ClearErrors drops every recorded error.
func (e *Engine) ClearErrors() {
	e.clearErrors()
	e.notify()
}

// ClearError drops the error with id and reports whether it was present.
func (e *Engine) ClearError(id string) bool {
	e.mu.Lock()
	found := false
	for i, err := range e.state.errors {
		if err.ID == id {
			e.state.errors = append(e.state.errors[:i:i], e.state.errors[i+1:]...)
			found = true
			break
		}
	}
	e.mu.Unlock()
	if found {
		e.notify()
	}
	return found
}

/*
====================================
OPERATION PLUMBING
====================================
*/

// beginOp marks an operation busy. It fails once the engine is closed.
func (e *Engine) beginOp(authenticating bool) bool {
	if e.closed.Load() {
		e.recordErrors(autherr.Wrap(autherr.CodeUnknown, "The session engine is closed", ErrEngineClosed))
		e.notify()
		return false
	}
	e.mu.Lock()
	e.state.errors = nil
	e.state.loadingOps++
	if authenticating {
		e.state.authOps++
	}
	e.mu.Unlock()
	e.notify()
	return true
}

func (e *Engine) endOp(authenticating bool) {
	e.mu.Lock()
	e.state.loadingOps--
	if authenticating {
		e.state.authOps--
	}
	e.mu.Unlock()
	e.notify()
}

// recoverOp turns a panic inside a public operation into UNKNOWN_ERROR.
func (e *Engine) recoverOp(op string, ok *bool) {
	r := recover()
	if r == nil {
		return
	}
	e.logger.Error("session operation panicked", zap.String("op", op), zap.Any("panic", r))
	e.recordErrors(autherr.New(autherr.CodeUnknown, ""))
	if ok != nil {
		*ok = false
	}
	e.notify()
}

func (e *Engine) epochs() (teardown, session uint64) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	return e.teardownEpoch, e.sessionEpoch
}

// callAPI bounds fn by API.Timeout. The deadline is enforced here as well
// as through ctx, so an implementation that ignores ctx still yields
// TIMEOUT_ERROR on time.
func callAPI[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, *AuthError) {
	var zero T
	callCtx, cancel := context.WithTimeout(ctx, e.config.API.Timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("identity API panicked", zap.String("op", op), zap.Any("panic", r))
				done <- result{err: autherr.New(autherr.CodeUnknown, "")}
			}
		}()
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		e.metrics.Observe(MetricAPILatency, time.Since(start))
		if r.err != nil {
			ae := autherr.From(r.err)
			if ae.Code == autherr.CodeTimeout && ctx.Err() == nil {
				e.metrics.Inc(MetricAPITimeout)
			}
			return zero, ae
		}
		return r.value, nil
	case <-callCtx.Done():
		e.metrics.Observe(MetricAPILatency, time.Since(start))
		if err := ctx.Err(); err != nil {
			return zero, autherr.From(err)
		}
		e.metrics.Inc(MetricAPITimeout)
		e.logger.Warn("identity API call timed out", zap.String("op", op), zap.Duration("timeout", e.config.API.Timeout))
		return zero, autherr.Wrap(autherr.CodeTimeout, "", callCtx.Err())
	}
}

// updateSecurity applies fn to the persisted counters under the key lock.
// When storage fails the in-memory counters are used instead.
func (e *Engine) updateSecurity(ctx context.Context, fn func(storage.SecurityCounters) storage.SecurityCounters) storage.SecurityCounters {
	next, err := e.auth.UpdateSecurity(ctx, fn)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.logger.Warn("security counters unavailable in storage, using memory", zap.Error(err))
		next = fn(e.state.security)
	}
	e.state.security = next
	return next
}

/*
====================================
LIFECYCLE
====================================
*/

// Close stops background tasks, drains the audit dispatcher and closes any
// storage the engine opened itself. Operations after Close fail.
func (e *Engine) Close() error {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.commitMu.Lock()
	e.stopSchedulerLocked()
	e.commitMu.Unlock()
	e.schedWG.Wait()

	e.dispatcher.Close()

	closers := append([]io.Closer(nil), e.closers...)
	if e.ownBackend {
		closers = append(closers, e.backend)
	}
	err := closeAll(closers)
	if err != nil && !errors.Is(err, storage.ErrClosed) {
		return err
	}
	return nil
}

// AuditLog exposes the audit log, or nil when audit logging is disabled.
func (e *Engine) AuditLog() *AuditLog {
	return e.auditLog
}

// AuditDropped counts audit events the dispatcher could not forward.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// StorageKind reports the persistence class of the active backend.
func (e *Engine) StorageKind() storage.Kind {
	return e.backend.Kind()
}
