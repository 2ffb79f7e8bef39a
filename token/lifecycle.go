package token

import "time"

// DefaultRefreshThreshold is how long before expiry a refresh becomes due.
const DefaultRefreshThreshold = 5 * time.Minute

// Lifecycle evaluates expiry predicates against an injectable clock.
type Lifecycle struct {
	Threshold time.Duration
	Now       func() time.Time
}

// NewLifecycle returns a Lifecycle using threshold, or the default when
// threshold is not positive.
func NewLifecycle(threshold time.Duration, now func() time.Time) Lifecycle {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	if now == nil {
		now = time.Now
	}
	return Lifecycle{Threshold: threshold, Now: now}
}

func (l Lifecycle) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// IsExpired reports now >= expiresAt. A zero expiry counts as expired.
func (l Lifecycle) IsExpired(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return true
	}
	return !l.now().Before(expiresAt)
}

// ShouldRefresh reports whether now falls within Threshold of expiresAt.
// Already expired tokens are also due.
func (l Lifecycle) ShouldRefresh(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return true
	}
	threshold := l.Threshold
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return !l.now().Before(expiresAt.Add(-threshold))
}

// TimeUntilRefresh returns how long until ShouldRefresh turns true, or zero
// when it already is.
func (l Lifecycle) TimeUntilRefresh(expiresAt time.Time) time.Duration {
	if l.ShouldRefresh(expiresAt) {
		return 0
	}
	threshold := l.Threshold
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return expiresAt.Add(-threshold).Sub(l.now())
}
