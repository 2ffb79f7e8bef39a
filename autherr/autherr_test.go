package autherr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestNewFillsDefaults(t *testing.T) {
	err := New(CodeAccountLocked, "")
	if err.ID == "" {
		t.Fatal("expected generated id")
	}
	if err.Message != DefaultMessage(CodeAccountLocked) {
		t.Fatalf("unexpected message %q", err.Message)
	}
	if err.Severity != SeverityHigh {
		t.Fatalf("unexpected severity %q", err.Severity)
	}
	if err.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("login: %w", New(CodeAccountLocked, "locked for 3 minutes"))
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("expected wrapped error to match ErrAccountLocked")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("did not expect match on a different code")
	}
}

func TestFromMapsTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: CodeTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: CodeTimeout},
		{name: "net op", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: CodeNetwork},
		{name: "plain", err: errors.New("boom"), want: CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if got.Code != tt.want {
				t.Fatalf("From(%v) code = %s, want %s", tt.err, got.Code, tt.want)
			}
			if got.Code != CodeUnknown && !errors.Is(got, tt.err) {
				t.Fatal("expected cause to stay reachable")
			}
		})
	}
}

func TestFromKeepsExistingError(t *testing.T) {
	orig := NewField(CodeInvalidEmail, "email", "")
	if got := From(orig); got != orig {
		t.Fatal("expected the same *Error back")
	}
	if From(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}

func TestRetryableOnlyForTransport(t *testing.T) {
	for _, code := range []Code{CodeNetwork, CodeTimeout, CodeServer} {
		if !Retryable(code) {
			t.Fatalf("%s should be retryable", code)
		}
	}
	for _, code := range []Code{CodeInvalidCredentials, CodeTokenInvalid, CodeAccountLocked} {
		if Retryable(code) {
			t.Fatalf("%s should not be retryable", code)
		}
	}
}
