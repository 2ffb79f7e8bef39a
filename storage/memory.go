package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process memory. It is the backend for
// server-side and non-interactive contexts.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.values == nil {
		return nil, false, ErrClosed
	}
	v, ok := m.values[key]
	return cloneBytes(v), ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		return ErrClosed
	}
	m.values[key] = cloneBytes(value)
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

func (m *MemoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		return ErrClosed
	}
	m.values = make(map[string][]byte)
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	m.values = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Kind() Kind { return KindTransient }
