package storage

import (
	"context"
	"errors"
)

// Kind names the persistence class of a backend.
type Kind string

const (
	// KindTransient lives only in process memory.
	KindTransient Kind = "transient"
	// KindVolatile survives process restarts but expires after a TTL.
	KindVolatile Kind = "volatile"
	// KindDurable persists until explicitly cleared.
	KindDurable Kind = "durable"
)

var (
	// ErrBackendUnavailable wraps failures of the underlying store.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrClosed is returned by backends after Close.
	ErrClosed = errors.New("storage backend closed")
)

// Backend is a raw key/value store. Implementations must be safe for
// concurrent use across keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
	Kind() Kind
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
