package goSession

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g.
// GOSESSION_SECURITY_MAX_LOGIN_ATTEMPTS=3.
const EnvPrefix = "GOSESSION"

// LoadConfig reads defaults, then the optional file at path (yaml, toml or
// json by extension), then GOSESSION_* environment variables. The result is
// validated.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	setDefaults(v, defaultConfig())
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("token.refresh_threshold", d.Token.RefreshThreshold)
	v.SetDefault("token.max_refresh_attempts", d.Token.MaxRefreshAttempts)
	v.SetDefault("token.refresh_retry_delay", d.Token.RefreshRetryDelay)
	v.SetDefault("token.refresh_check_interval", d.Token.RefreshCheckInterval)
	v.SetDefault("token.default_access_ttl", d.Token.DefaultAccessTTL)
	v.SetDefault("token.default_refresh_ttl", d.Token.DefaultRefreshTTL)

	v.SetDefault("security.max_login_attempts", d.Security.MaxLoginAttempts)
	v.SetDefault("security.lockout_duration", d.Security.LockoutDuration)
	v.SetDefault("security.rate_limit_burst", d.Security.RateLimitBurst)
	v.SetDefault("security.rate_limit_interval", d.Security.RateLimitInterval)

	v.SetDefault("session.timeout", d.Session.Timeout)
	v.SetDefault("session.validate_interval", d.Session.ValidateInterval)

	v.SetDefault("storage.key_prefix", d.Storage.KeyPrefix)
	v.SetDefault("storage.prefer_durable", d.Storage.PreferDurable)
	v.SetDefault("storage.context", string(d.Storage.Context))
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_namespace", d.Storage.RedisNamespace)
	v.SetDefault("storage.volatile_ttl", d.Storage.VolatileTTL)
	v.SetDefault("storage.codec", d.Storage.Codec)
	v.SetDefault("storage.encryption_key", d.Storage.EncryptionKey)

	v.SetDefault("audit.memory_capacity", d.Audit.MemoryCapacity)
	v.SetDefault("audit.durable_capacity", d.Audit.DurableCapacity)
	v.SetDefault("audit.dispatch_buffer", d.Audit.DispatchBuffer)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)
	v.SetDefault("audit.kafka_brokers", d.Audit.KafkaBrokers)
	v.SetDefault("audit.kafka_topic", d.Audit.KafkaTopic)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)

	v.SetDefault("validation.password_min_length", d.Validation.PasswordMinLength)
	v.SetDefault("validation.password_max_length", d.Validation.PasswordMaxLength)
	v.SetDefault("validation.password_min_strength", d.Validation.PasswordMinStrength)
	v.SetDefault("validation.enforce_policy_on_login", d.Validation.EnforcePolicyOnLogin)
	v.SetDefault("validation.reject_common_passwords", d.Validation.RejectCommonPasswords)

	v.SetDefault("features.audit_logging", d.Features.AuditLogging)
	v.SetDefault("features.session_management", d.Features.SessionManagement)
	v.SetDefault("features.rate_limiting", d.Features.RateLimiting)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
