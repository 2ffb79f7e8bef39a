package goSession

import (
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

// Config is the static engine configuration. It is loaded once and treated
// as immutable after Build.
type Config struct {
	Token      TokenConfig      `mapstructure:"token"`
	Security   SecurityConfig   `mapstructure:"security"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Audit      AuditConfig      `mapstructure:"audit"`
	API        APIConfig        `mapstructure:"api"`
	Validation ValidationConfig `mapstructure:"validation"`
	Features   FeatureConfig    `mapstructure:"features"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls refresh timing. The default TTLs are only used when
// the identity API reports no expiry and the token carries no exp claim.
type TokenConfig struct {
	RefreshThreshold     time.Duration `mapstructure:"refresh_threshold"`
	MaxRefreshAttempts   int           `mapstructure:"max_refresh_attempts"`
	RefreshRetryDelay    time.Duration `mapstructure:"refresh_retry_delay"`
	RefreshCheckInterval time.Duration `mapstructure:"refresh_check_interval"`
	DefaultAccessTTL     time.Duration `mapstructure:"default_access_ttl"`
	DefaultRefreshTTL    time.Duration `mapstructure:"default_refresh_ttl"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the lockout policy and the burst limiter tuning.
type SecurityConfig struct {
	MaxLoginAttempts  int           `mapstructure:"max_login_attempts"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst"`
	RateLimitInterval time.Duration `mapstructure:"rate_limit_interval"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig holds the inactivity timeout and liveness check cadence.
type SessionConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	ValidateInterval time.Duration `mapstructure:"validate_interval"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	KeyPrefix      string                 `mapstructure:"key_prefix"`
	PreferDurable  bool                   `mapstructure:"prefer_durable"`
	Context        storage.RuntimeContext `mapstructure:"context"`
	SQLitePath     string                 `mapstructure:"sqlite_path"`
	RedisAddr      string                 `mapstructure:"redis_addr"`
	RedisNamespace string                 `mapstructure:"redis_namespace"`
	VolatileTTL    time.Duration          `mapstructure:"volatile_ttl"`
	Codec          string                 `mapstructure:"codec"` // "plain", "base64" or "aead"
	EncryptionKey  string                 `mapstructure:"encryption_key"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig bounds the audit log and configures forwarding.
type AuditConfig struct {
	MemoryCapacity  int      `mapstructure:"memory_capacity"`
	DurableCapacity int      `mapstructure:"durable_capacity"`
	DispatchBuffer  int      `mapstructure:"dispatch_buffer"`
	DropIfFull      bool     `mapstructure:"drop_if_full"`
	KafkaBrokers    []string `mapstructure:"kafka_brokers"`
	KafkaTopic      string   `mapstructure:"kafka_topic"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points at the remote identity API. Timeout bounds every call.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig tunes the password policy.
type ValidationConfig struct {
	PasswordMinLength     int  `mapstructure:"password_min_length"`
	PasswordMaxLength     int  `mapstructure:"password_max_length"`
	PasswordMinStrength   int  `mapstructure:"password_min_strength"` // zxcvbn score 0-4, 0 disables
	EnforcePolicyOnLogin  bool `mapstructure:"enforce_policy_on_login"`
	RejectCommonPasswords bool `mapstructure:"reject_common_passwords"`
}

/*
====================================
FEATURES / METRICS / LOGGING
====================================
*/

// FeatureConfig toggles optional subsystems.
type FeatureConfig struct {
	AuditLogging      bool `mapstructure:"audit_logging"`
	SessionManagement bool `mapstructure:"session_management"`
	RateLimiting      bool `mapstructure:"rate_limiting"`
}

type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// LoggingConfig is consumed by binaries that build their own logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			RefreshThreshold:     5 * time.Minute,
			MaxRefreshAttempts:   3,
			RefreshRetryDelay:    500 * time.Millisecond,
			RefreshCheckInterval: 60 * time.Second,
			DefaultAccessTTL:     15 * time.Minute,
			DefaultRefreshTTL:    7 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:  5,
			LockoutDuration:   15 * time.Minute,
			RateLimitBurst:    5,
			RateLimitInterval: 2 * time.Second,
		},
		Session: SessionConfig{
			Timeout:          30 * time.Minute,
			ValidateInterval: 30 * time.Second,
		},
		Storage: StorageConfig{
			KeyPrefix:      "auth",
			PreferDurable:  true,
			Context:        storage.ContextClient,
			SQLitePath:     "gosession.db",
			RedisNamespace: "gosession",
			VolatileTTL:    24 * time.Hour,
			Codec:          "plain",
		},
		Audit: AuditConfig{
			MemoryCapacity:  1000,
			DurableCapacity: 500,
			DispatchBuffer:  256,
			DropIfFull:      true,
			KafkaTopic:      "gosession.audit",
		},
		API: APIConfig{
			Timeout: 10 * time.Second,
		},
		Validation: ValidationConfig{
			PasswordMinLength:     8,
			PasswordMaxLength:     128,
			EnforcePolicyOnLogin:  true,
			RejectCommonPasswords: true,
		},
		Features: FeatureConfig{
			AuditLogging:      true,
			SessionManagement: true,
			RateLimiting:      true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Audit.KafkaBrokers != nil {
		out.Audit.KafkaBrokers = append([]string(nil), cfg.Audit.KafkaBrokers...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	// Token
	if c.Token.RefreshThreshold <= 0 {
		return errors.New("Token RefreshThreshold must be > 0")
	}
	if c.Token.MaxRefreshAttempts < 1 {
		return errors.New("Token MaxRefreshAttempts must be >= 1")
	}
	if c.Token.RefreshRetryDelay < 0 {
		return errors.New("Token RefreshRetryDelay must be >= 0")
	}
	if c.Token.RefreshCheckInterval <= 0 {
		return errors.New("Token RefreshCheckInterval must be > 0")
	}
	if c.Token.DefaultAccessTTL <= 0 || c.Token.DefaultRefreshTTL <= 0 {
		return errors.New("Token default TTLs must be > 0")
	}
	if c.Token.DefaultAccessTTL >= c.Token.DefaultRefreshTTL {
		return errors.New("Token DefaultAccessTTL must be shorter than DefaultRefreshTTL")
	}

	// Security
	if c.Security.MaxLoginAttempts < 1 {
		return errors.New("Security MaxLoginAttempts must be >= 1")
	}
	if c.Security.LockoutDuration <= 0 {
		return errors.New("Security LockoutDuration must be > 0")
	}
	if c.Features.RateLimiting {
		if c.Security.RateLimitBurst < 1 {
			return errors.New("Security RateLimitBurst must be >= 1 when rate limiting is enabled")
		}
		if c.Security.RateLimitInterval <= 0 {
			return errors.New("Security RateLimitInterval must be > 0 when rate limiting is enabled")
		}
	}

	// Session
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.ValidateInterval <= 0 {
		return errors.New("Session ValidateInterval must be > 0")
	}

	// Storage
	if c.Storage.KeyPrefix == "" {
		return errors.New("Storage KeyPrefix must not be empty")
	}
	switch c.Storage.Context {
	case storage.ContextClient, storage.ContextServer:
	default:
		return errors.New("Storage Context must be \"client\" or \"server\"")
	}
	switch c.Storage.Codec {
	case "plain", "base64":
	case "aead":
		if len(c.Storage.EncryptionKey) < 16 {
			return errors.New("Storage EncryptionKey must be at least 16 bytes for the aead codec")
		}
	default:
		return errors.New("Storage Codec must be plain, base64 or aead")
	}
	if c.Storage.VolatileTTL < 0 {
		return errors.New("Storage VolatileTTL must be >= 0")
	}

	// Audit
	if c.Audit.MemoryCapacity < 1 {
		return errors.New("Audit MemoryCapacity must be >= 1")
	}
	if c.Audit.DurableCapacity < 0 || c.Audit.DurableCapacity > c.Audit.MemoryCapacity {
		return errors.New("Audit DurableCapacity must be between 0 and MemoryCapacity")
	}
	if c.Audit.DispatchBuffer < 1 {
		return errors.New("Audit DispatchBuffer must be >= 1")
	}

	// API
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("API BaseURL must be an absolute http(s) URL")
		}
	}

	// Validation
	if c.Validation.PasswordMinLength < 1 {
		return errors.New("Validation PasswordMinLength must be >= 1")
	}
	if c.Validation.PasswordMaxLength < c.Validation.PasswordMinLength {
		return errors.New("Validation PasswordMaxLength must be >= PasswordMinLength")
	}
	if c.Validation.PasswordMinStrength < 0 || c.Validation.PasswordMinStrength > 4 {
		return errors.New("Validation PasswordMinStrength must be between 0 and 4")
	}

	return nil
}
