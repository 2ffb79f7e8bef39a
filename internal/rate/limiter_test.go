package rate

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestAllowBurstThenRefill(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Config{Burst: 3, Interval: 2 * time.Second}, clock.Now)

	for i := 0; i < 3; i++ {
		if err := l.Allow("ana@example.com"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.Allow(" ANA@example.com "); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected normalized key to share the bucket, got %v", err)
	}
	if err := l.Allow("bo@example.com"); err != nil {
		t.Fatalf("other key throttled: %v", err)
	}

	clock.now = clock.now.Add(2 * time.Second)
	if err := l.Allow("ana@example.com"); err != nil {
		t.Fatalf("token not restored after interval: %v", err)
	}
	if err := l.Allow("ana@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected only one token restored, got %v", err)
	}

	l.Reset("ana@example.com")
	if err := l.Allow("ana@example.com"); err != nil {
		t.Fatalf("Reset did not restore burst: %v", err)
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Config{Burst: 1, Interval: time.Second, MaxKeys: 2}, clock.Now)
	_ = l.Allow("a")
	_ = l.Allow("b")

	clock.now = clock.now.Add(time.Minute)
	_ = l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("tracked keys = %d, want 1 after sweep", l.Len())
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	if err := l.Allow("x"); err != nil {
		t.Fatalf("nil limiter returned %v", err)
	}
	l.Reset("x")
}
