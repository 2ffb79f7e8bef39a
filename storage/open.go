package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RuntimeContext describes where the engine runs. It decides which backend
// Open builds.
type RuntimeContext string

const (
	// ContextServer covers servers, workers and other non-interactive hosts.
	ContextServer RuntimeContext = "server"
	// ContextClient covers interactive clients.
	ContextClient RuntimeContext = "client"
)

const defaultPingTimeout = 2 * time.Second

// Options configures Open.
type Options struct {
	Context       RuntimeContext
	PreferDurable bool

	// SQLitePath is the durable database file. Empty means ":memory:".
	SQLitePath string

	// RedisClient takes precedence over RedisAddr when set. The caller keeps
	// ownership of it.
	RedisClient redis.UniversalClient
	RedisAddr   string
	Namespace   string
	VolatileTTL time.Duration
	PingTimeout time.Duration

	Logger *zap.Logger
}

// Open builds the backend for opts.Context:
//
//	server                  -> MemoryBackend
//	client + PreferDurable  -> SQLiteBackend
//	client                  -> RedisBackend, or MemoryBackend when redis is unreachable
func Open(ctx context.Context, opts Options) (Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Context {
	case ContextServer:
		return NewMemoryBackend(), nil
	case ContextClient, "":
	default:
		return nil, errors.New("storage: unknown runtime context " + string(opts.Context))
	}

	if opts.PreferDurable {
		path := opts.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return NewSQLiteBackend(ctx, path, opts.Namespace, logger)
	}

	client := opts.RedisClient
	owned := false
	if client == nil {
		if opts.RedisAddr == "" {
			logger.Warn("volatile storage requested without redis address, using memory")
			return NewMemoryBackend(), nil
		}
		client = redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		owned = true
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("volatile storage unavailable, using memory", zap.Error(err))
		if owned {
			_ = client.Close()
		}
		return NewMemoryBackend(), nil
	}

	b := NewRedisBackend(client, opts.Namespace, opts.VolatileTTL)
	b.ownClient = owned
	return b, nil
}
