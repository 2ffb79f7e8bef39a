package rate

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a key has exhausted its burst.
var ErrRateLimited = errors.New("rate limited")

const defaultMaxKeys = 1024

// Config tunes a Limiter. One token is restored every Interval up to Burst.
type Config struct {
	Burst    int
	Interval time.Duration
	// MaxKeys bounds tracked keys. Idle buckets are swept once it is reached.
	MaxKeys int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is an in-process token bucket per key, used to throttle bursts
// of login and signup attempts for one identifier.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New builds a Limiter. now may be nil.
func New(cfg Config, now func() time.Time) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{cfg: cfg, now: now, buckets: make(map[string]*bucket)}
}

// Normalize folds identifiers that name the same account onto one key.
func Normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Allow spends one token for key.
func (l *Limiter) Allow(key string) error {
	if l == nil {
		return nil
	}
	key = Normalize(key)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.cfg.MaxKeys {
			l.sweepLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.cfg.Interval), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if !b.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.buckets, Normalize(key))
	l.mu.Unlock()
}

// sweepLocked drops buckets that have refilled completely.
func (l *Limiter) sweepLocked(now time.Time) {
	full := time.Duration(l.cfg.Burst) * l.cfg.Interval
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= full {
			delete(l.buckets, k)
		}
	}
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
