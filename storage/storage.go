package storage

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Storage runs values through a Codec before they reach a Backend and
// serializes writes per key.
type Storage struct {
	backend Backend
	codec   Codec
	logger  *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New wraps backend. A nil codec stores values unchanged.
func New(backend Backend, codec Codec, logger *zap.Logger) *Storage {
	if codec == nil {
		codec = PlainCodec{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		backend: backend,
		codec:   codec,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Backend exposes the underlying backend.
func (s *Storage) Backend() Backend { return s.backend }

// Codec exposes the active codec.
func (s *Storage) Codec() Codec { return s.codec }

func (s *Storage) keyLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Get returns the decoded value of key. A value that fails to decode is
// reported absent and removed.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	plain, err := s.codec.Decode(raw)
	if err != nil {
		s.logger.Warn("undecodable value cleared", zap.String("key", key), zap.String("codec", s.codec.Name()), zap.Error(err))
		if rmErr := s.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("failed to clear undecodable value", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, false, nil
	}
	return plain, true, nil
}

// Set encodes value and stores it under key.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return s.setLocked(ctx, key, value)
}

func (s *Storage) setLocked(ctx context.Context, key string, value []byte) error {
	enc, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, key, enc)
}

// Remove deletes key.
func (s *Storage) Remove(ctx context.Context, key string) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return s.backend.Remove(ctx, key)
}

// Clear empties the backend.
func (s *Storage) Clear(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

// ErrSkipWrite lets an Update callback leave the stored value unchanged.
var ErrSkipWrite = errors.New("storage: skip write")

// Update performs a read-modify-write of key while holding its lock. fn sees
// the current value (nil, false when absent). Returning a nil slice removes
// the key. Returning ErrSkipWrite leaves it as is.
func (s *Storage) Update(ctx context.Context, key string, fn func(current []byte, ok bool) ([]byte, error)) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	var (
		current []byte
		ok      bool
	)
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if found {
		plain, decErr := s.codec.Decode(raw)
		if decErr == nil {
			current, ok = plain, true
		} else {
			s.logger.Warn("undecodable value ignored during update", zap.String("key", key), zap.Error(decErr))
		}
	}

	next, err := fn(current, ok)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	if next == nil {
		return s.backend.Remove(ctx, key)
	}
	return s.setLocked(ctx, key, next)
}

// Close closes the backend.
func (s *Storage) Close() error {
	return s.backend.Close()
}
