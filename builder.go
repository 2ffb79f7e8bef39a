package goSession

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/token"
	"github.com/MrEthical07/goSession/validation"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config

	api     identity.API
	backend storage.Backend
	codec   storage.Codec
	redis   redis.UniversalClient

	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAPI sets the identity service. Without it Build creates an HTTP
// client for API.BaseURL.
func (b *Builder) WithAPI(api identity.API) *Builder {
	b.api = api
	return b
}

// WithBackend bypasses backend selection. The caller keeps ownership and
// Engine.Close leaves it open.
func (b *Builder) WithBackend(backend storage.Backend) *Builder {
	b.backend = backend
	return b
}

// WithCodec overrides the codec named by Storage.Codec.
func (b *Builder) WithCodec(codec storage.Codec) *Builder {
	b.codec = codec
	return b
}

// WithRedis supplies the client for the volatile backend instead of
// dialing Storage.RedisAddr.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink forwards every audit event to sink, in addition to any
// Kafka sink configured under Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for every policy decision the engine makes.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled overrides Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The returned
// engine is uninitialized; call Initialize before trusting its state.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- IDENTITY API --------
	api := b.api
	if api == nil {
		if cfg.API.BaseURL == "" {
			return nil, ErrNoIdentityAPI
		}
		client, err := identity.NewHTTPClient(identity.ClientConfig{
			BaseURL:           cfg.API.BaseURL,
			DefaultAccessTTL:  cfg.Token.DefaultAccessTTL,
			DefaultRefreshTTL: cfg.Token.DefaultRefreshTTL,
			Now:               now,
		})
		if err != nil {
			return nil, err
		}
		api = client
	}

	// -------- STORAGE --------
	codec := b.codec
	if codec == nil {
		c, err := storage.CodecByName(cfg.Storage.Codec, []byte(cfg.Storage.EncryptionKey), cfg.Storage.KeyPrefix)
		if err != nil {
			return nil, err
		}
		codec = c
	}

	backend := b.backend
	ownBackend := false
	if backend == nil {
		opened, err := storage.Open(context.Background(), storage.Options{
			Context:       cfg.Storage.Context,
			PreferDurable: cfg.Storage.PreferDurable,
			SQLitePath:    cfg.Storage.SQLitePath,
			RedisClient:   b.redis,
			RedisAddr:     cfg.Storage.RedisAddr,
			Namespace:     cfg.Storage.RedisNamespace,
			VolatileTTL:   cfg.Storage.VolatileTTL,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		backend = opened
		ownBackend = true
	}

	store := storage.New(backend, codec, logger)
	auth := storage.NewAuthStorage(store, cfg.Storage.KeyPrefix, logger)

	e := &Engine{
		config:     cfg,
		api:        api,
		backend:    backend,
		ownBackend: ownBackend,
		store:      store,
		auth:       auth,
		lockout:    limiters.NewLockout(cfg.Security.MaxLoginAttempts, cfg.Security.LockoutDuration),
		validator:  validatorFromConfig(cfg.Validation),
		lifecycle:  token.NewLifecycle(cfg.Token.RefreshThreshold, now),
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger.With(zap.String("component", "session")),
		now:        now,
		listeners:  make(map[uint64]Listener),
	}
	auth.OnHeal(func(string) { e.metrics.Inc(MetricStorageSelfHeal) })

	if cfg.Features.RateLimiting {
		e.limiter = rate.New(rate.Config{
			Burst:    cfg.Security.RateLimitBurst,
			Interval: cfg.Security.RateLimitInterval,
		}, now)
	}

	// -------- AUDIT --------
	if cfg.Features.AuditLogging {
		var sinks audit.MultiSink
		if b.auditSink != nil {
			sinks = append(sinks, b.auditSink)
		}
		if kafka := audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic, logger); kafka != nil {
			sinks = append(sinks, kafka)
			e.closers = append(e.closers, kafka)
		}

		var sink audit.Sink
		switch len(sinks) {
		case 0:
		case 1:
			sink = sinks[0]
		default:
			sink = sinks
		}
		e.dispatcher = audit.NewDispatcher(audit.DispatchConfig{
			BufferSize: cfg.Audit.DispatchBuffer,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink)

		opts := audit.Options{
			Capacity:   cfg.Audit.MemoryCapacity,
			Dispatcher: e.dispatcher,
			Metadata:   clientMetadata,
			Now:        now,
			Logger:     logger,
		}
		if cfg.Audit.DurableCapacity > 0 {
			opts.PersistCapacity = cfg.Audit.DurableCapacity
			opts.Store = store
			opts.Key = auth.AuditLogKey()
		}
		e.auditLog = audit.NewLog(context.Background(), opts)
	}

	b.built = true
	return e, nil
}

func validatorFromConfig(c ValidationConfig) *validation.Validator {
	policy := validation.DefaultPasswordPolicy()
	policy.MinLength = c.PasswordMinLength
	policy.MaxLength = c.PasswordMaxLength
	policy.MinStrengthScore = c.PasswordMinStrength
	if !c.RejectCommonPasswords {
		policy.CommonPasswords = nil
	}
	return validation.New(
		validation.WithPasswordPolicy(policy),
		validation.WithLoginPolicy(c.EnforcePolicyOnLogin),
	)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
