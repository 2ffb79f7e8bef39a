package limiters

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/storage"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecordFailureLocksExactlyOnNth(t *testing.T) {
	l := NewLockout(5, 15*time.Minute)
	var c storage.SecurityCounters
	for i := 1; i <= 5; i++ {
		var locked bool
		c, locked = l.RecordFailure(c, t0.Add(time.Duration(i)*time.Second))
		if c.LoginAttempts != i {
			t.Fatalf("attempts = %d, want %d", c.LoginAttempts, i)
		}
		if locked != (i == 5) {
			t.Fatalf("failure %d lockedNow = %v", i, locked)
		}
	}
	if !c.IsLocked || !c.LockoutUntil.Equal(t0.Add(5*time.Second+15*time.Minute)) {
		t.Fatalf("unexpected counters %+v", c)
	}

	again, locked := l.RecordFailure(c, t0.Add(10*time.Second))
	if locked || again.LockoutUntil != c.LockoutUntil {
		t.Fatal("an already-locked account re-triggered the lock")
	}
}

func TestCheckRejectsWhileLocked(t *testing.T) {
	l := NewLockout(5, 15*time.Minute)
	c := storage.SecurityCounters{LoginAttempts: 5, IsLocked: true, LockoutUntil: t0.Add(14*time.Minute + 10*time.Second)}

	next, cleared, err := l.Check(c, t0)
	if err == nil || !errors.Is(err, autherr.ErrAccountLocked) {
		t.Fatalf("expected ACCOUNT_LOCKED, got %v", err)
	}
	if cleared || next != c {
		t.Fatal("Check modified counters while locked")
	}
	if !strings.Contains(err.Message, "15 minutes") {
		t.Fatalf("message %q does not carry rounded-up minutes", err.Message)
	}
}

func TestCheckClearsElapsedLock(t *testing.T) {
	l := NewLockout(5, 15*time.Minute)
	c := storage.SecurityCounters{LoginAttempts: 5, LastLoginAttempt: t0, IsLocked: true, LockoutUntil: t0.Add(15 * time.Minute)}

	next, cleared, err := l.Check(c, t0.Add(15*time.Minute))
	if err != nil || !cleared {
		t.Fatalf("expected lock to clear, got cleared=%v err=%v", cleared, err)
	}
	if next.IsLocked || next.LoginAttempts != 0 || !next.LockoutUntil.IsZero() {
		t.Fatalf("lock not fully cleared: %+v", next)
	}

	after, locked := l.RecordFailure(next, t0.Add(16*time.Minute))
	if locked || after.LoginAttempts != 1 {
		t.Fatalf("counting did not restart: %+v", after)
	}
}

func TestCheckPassesUnlocked(t *testing.T) {
	c := storage.SecurityCounters{LoginAttempts: 3}
	next, cleared, err := NewLockout(0, 0).Check(c, t0)
	if err != nil || cleared || next != c {
		t.Fatalf("unexpected result %+v %v %v", next, cleared, err)
	}
}

func TestRemainingMinutes(t *testing.T) {
	tests := map[time.Duration]int{
		0:                          1,
		time.Second:                1,
		time.Minute:                1,
		time.Minute + time.Second:  2,
		15 * time.Minute:           15,
		14*time.Minute + time.Hour: 74,
	}
	for d, want := range tests {
		if got := RemainingMinutes(d); got != want {
			t.Fatalf("RemainingMinutes(%v) = %d, want %d", d, got, want)
		}
	}
	if msg := LockedError(30 * time.Second).Message; !strings.Contains(msg, "1 minute.") {
		t.Fatalf("singular message wrong: %q", msg)
	}
}
