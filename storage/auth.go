package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"go.uber.org/zap"
)

const (
	recordVersionCurrent = 1

	keyTokens   = "tokens"
	keyUser     = "user"
	keySession  = "session"
	keySecurity = "security"
	keyAuditLog = "audit_log"
)

// errInvalidRecord marks a stored record that decoded but fails its
// structural checks.
var errInvalidRecord = errors.New("storage: invalid record")

// SessionDescriptor is persisted to detect inactivity across restarts.
type SessionDescriptor struct {
	SessionID    string    `json:"session_id"`
	LastActivity time.Time `json:"last_activity"`
}

// SecurityCounters back the login lockout policy.
type SecurityCounters struct {
	LoginAttempts    int       `json:"login_attempts"`
	LastLoginAttempt time.Time `json:"last_login_attempt,omitempty"`
	IsLocked         bool      `json:"is_locked"`
	LockoutUntil     time.Time `json:"lockout_until,omitempty"`
}

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// AuthStorage gives typed, independently clearable access to the session
// records. Corrupted records are removed and reported absent.
type AuthStorage struct {
	store  *Storage
	prefix string
	logger *zap.Logger
	onHeal func(key string)
}

// NewAuthStorage namespaces keys under prefix.
func NewAuthStorage(store *Storage, prefix string, logger *zap.Logger) *AuthStorage {
	if prefix == "" {
		prefix = "auth"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthStorage{store: store, prefix: prefix, logger: logger}
}

// OnHeal registers fn to be told about every self-healed key.
func (a *AuthStorage) OnHeal(fn func(key string)) {
	a.onHeal = fn
}

// Key returns the namespaced key for name.
func (a *AuthStorage) Key(name string) string {
	return a.prefix + "_" + name
}

// AuditLogKey is where the audit log persists its events.
func (a *AuthStorage) AuditLogKey() string { return a.Key(keyAuditLog) }

// Keys lists the session keys cleared by ClearAll.
func (a *AuthStorage) Keys() []string {
	return []string{a.Key(keyTokens), a.Key(keyUser), a.Key(keySession), a.Key(keySecurity)}
}

// Storage exposes the underlying store.
func (a *AuthStorage) Storage() *Storage { return a.store }

func marshalRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: recordVersionCurrent, Data: data})
}

func unmarshalRecord(raw []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Version != recordVersionCurrent {
		return fmt.Errorf("%w: unsupported version %d", errInvalidRecord, env.Version)
	}
	if len(env.Data) == 0 {
		return errInvalidRecord
	}
	return json.Unmarshal(env.Data, v)
}

// load decodes key into v and checks it with valid. Anything unreadable is
// removed so the next reader starts clean.
func (a *AuthStorage) load(ctx context.Context, name string, v any, valid func() bool) (bool, error) {
	key := a.Key(name)
	raw, ok, err := a.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	err = unmarshalRecord(raw, v)
	if err == nil && !valid() {
		err = errInvalidRecord
	}
	if err != nil {
		a.heal(ctx, key, err)
		return false, nil
	}
	return true, nil
}

func (a *AuthStorage) heal(ctx context.Context, key string, cause error) {
	a.logger.Warn("corrupted auth record cleared", zap.String("key", key), zap.Error(cause))
	if a.onHeal != nil {
		a.onHeal(key)
	}
	if err := a.store.Remove(ctx, key); err != nil {
		a.logger.Warn("failed to clear corrupted auth record", zap.String("key", key), zap.Error(err))
	}
}

func (a *AuthStorage) save(ctx context.Context, name string, v any) error {
	data, err := marshalRecord(v)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.Key(name), data)
}

// Tokens returns the stored pair, or nil.
func (a *AuthStorage) Tokens(ctx context.Context) (*identity.TokenPair, error) {
	var p identity.TokenPair
	ok, err := a.load(ctx, keyTokens, &p, p.Valid)
	if !ok {
		return nil, err
	}
	return &p, nil
}

// SetTokens replaces the stored pair.
func (a *AuthStorage) SetTokens(ctx context.Context, p *identity.TokenPair) error {
	if p == nil {
		return a.ClearTokens(ctx)
	}
	return a.save(ctx, keyTokens, p)
}

// ClearTokens removes the stored pair.
func (a *AuthStorage) ClearTokens(ctx context.Context) error {
	return a.store.Remove(ctx, a.Key(keyTokens))
}

// User returns the stored user, or nil.
func (a *AuthStorage) User(ctx context.Context) (*identity.User, error) {
	var u identity.User
	ok, err := a.load(ctx, keyUser, &u, u.Valid)
	if !ok {
		return nil, err
	}
	return &u, nil
}

// SetUser replaces the stored user.
func (a *AuthStorage) SetUser(ctx context.Context, u *identity.User) error {
	if u == nil {
		return a.ClearUser(ctx)
	}
	return a.save(ctx, keyUser, u)
}

// ClearUser removes the stored user.
func (a *AuthStorage) ClearUser(ctx context.Context) error {
	return a.store.Remove(ctx, a.Key(keyUser))
}

// Session returns the stored descriptor, or nil.
func (a *AuthStorage) Session(ctx context.Context) (*SessionDescriptor, error) {
	var d SessionDescriptor
	ok, err := a.load(ctx, keySession, &d, func() bool { return d.SessionID != "" })
	if !ok {
		return nil, err
	}
	return &d, nil
}

// SetSession replaces the stored descriptor.
func (a *AuthStorage) SetSession(ctx context.Context, d *SessionDescriptor) error {
	if d == nil {
		return a.ClearSession(ctx)
	}
	return a.save(ctx, keySession, d)
}

// ClearSession removes the stored descriptor.
func (a *AuthStorage) ClearSession(ctx context.Context) error {
	return a.store.Remove(ctx, a.Key(keySession))
}

func (c SecurityCounters) valid() bool {
	if c.LoginAttempts < 0 {
		return false
	}
	return !c.IsLocked || !c.LockoutUntil.IsZero()
}

// Security returns the stored counters. Absent counters are the zero value.
func (a *AuthStorage) Security(ctx context.Context) (SecurityCounters, error) {
	var c SecurityCounters
	ok, err := a.load(ctx, keySecurity, &c, func() bool { return c.valid() })
	if !ok {
		return SecurityCounters{}, err
	}
	return c, nil
}

// SetSecurity replaces the stored counters.
func (a *AuthStorage) SetSecurity(ctx context.Context, c SecurityCounters) error {
	return a.save(ctx, keySecurity, c)
}

// UpdateSecurity applies fn to the current counters under the key lock, so
// concurrent increments cannot lose updates.
func (a *AuthStorage) UpdateSecurity(ctx context.Context, fn func(SecurityCounters) SecurityCounters) (SecurityCounters, error) {
	var result SecurityCounters
	err := a.store.Update(ctx, a.Key(keySecurity), func(current []byte, ok bool) ([]byte, error) {
		var c SecurityCounters
		if ok {
			if err := unmarshalRecord(current, &c); err != nil || !c.valid() {
				a.logger.Warn("corrupted security counters reset", zap.Error(err))
				c = SecurityCounters{}
			}
		}
		result = fn(c)
		return marshalRecord(result)
	})
	if err != nil {
		return SecurityCounters{}, err
	}
	return result, nil
}

// ClearSecurity removes the stored counters.
func (a *AuthStorage) ClearSecurity(ctx context.Context) error {
	return a.store.Remove(ctx, a.Key(keySecurity))
}

// ClearAll removes every session key. The audit log is left in place.
func (a *AuthStorage) ClearAll(ctx context.Context) error {
	var errs []error
	for _, key := range a.Keys() {
		if err := a.store.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsAuthenticated reports whether a user and an unexpired token pair are
// both stored.
func (a *AuthStorage) IsAuthenticated(ctx context.Context, now time.Time) (bool, error) {
	tokens, err := a.Tokens(ctx)
	if err != nil || tokens == nil {
		return false, err
	}
	if !now.Before(tokens.ExpiresAt) {
		return false, nil
	}
	user, err := a.User(ctx)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
