package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const clearScanBatch = 100

// RedisBackend stores values under a namespace with a sliding TTL. It backs
// short-lived client contexts where state should evaporate on its own.
type RedisBackend struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	ownClient bool
}

// NewRedisBackend wraps client. A ttl of zero keeps keys until removed.
func NewRedisBackend(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisBackend {
	if namespace == "" {
		namespace = "gosession"
	}
	return &RedisBackend{client: client, namespace: namespace, ttl: ttl}
}

func (r *RedisBackend) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear deletes every key in the namespace. Keys outside it are untouched.
func (r *RedisBackend) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.namespace+":*", clearScanBatch).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the client only when the backend created it.
func (r *RedisBackend) Close() error {
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}

func (r *RedisBackend) Kind() Kind { return KindVolatile }
