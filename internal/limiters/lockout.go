package limiters

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/storage"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// Lockout is the login lockout policy. It is a pure function of the stored
// counters and the current time; callers persist the counters it returns.
type Lockout struct {
	MaxAttempts int
	Duration    time.Duration
}

// NewLockout fills unset fields with the defaults.
func NewLockout(maxAttempts int, duration time.Duration) Lockout {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return Lockout{MaxAttempts: maxAttempts, Duration: duration}
}

// Check gates a login attempt. A lock still in force yields ACCOUNT_LOCKED.
// A lock whose window has passed is lifted, and the attempt counter reset,
// before the attempt proceeds; cleared reports that case so the caller can
// persist it.
func (l Lockout) Check(c storage.SecurityCounters, now time.Time) (next storage.SecurityCounters, cleared bool, err *autherr.Error) {
	if !c.IsLocked {
		return c, false, nil
	}
	if now.Before(c.LockoutUntil) {
		return c, false, LockedError(c.LockoutUntil.Sub(now))
	}
	return storage.SecurityCounters{LastLoginAttempt: c.LastLoginAttempt}, true, nil
}

// RecordFailure counts a failed attempt. lockedNow is true only for the
// failure that engages the lock.
func (l Lockout) RecordFailure(c storage.SecurityCounters, now time.Time) (next storage.SecurityCounters, lockedNow bool) {
	next = c
	next.LoginAttempts++
	next.LastLoginAttempt = now
	if !c.IsLocked && l.MaxAttempts > 0 && next.LoginAttempts >= l.MaxAttempts {
		next.IsLocked = true
		next.LockoutUntil = now.Add(l.Duration)
		lockedNow = true
	}
	return next, lockedNow
}

// RecordSuccess returns cleared counters.
func (l Lockout) RecordSuccess() storage.SecurityCounters {
	return storage.SecurityCounters{}
}

// RemainingMinutes rounds d up to whole minutes, never below one.
func RemainingMinutes(d time.Duration) int {
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// LockedError builds the ACCOUNT_LOCKED error for a lock with d remaining.
func LockedError(d time.Duration) *autherr.Error {
	m := RemainingMinutes(d)
	unit := "minutes"
	if m == 1 {
		unit = "minute"
	}
	return autherr.New(autherr.CodeAccountLocked,
		fmt.Sprintf("Account is temporarily locked due to too many failed login attempts. Try again in %d %s.", m, unit))
}
