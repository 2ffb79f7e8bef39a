package goSession

import (
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/storage"
)

// LintSeverity grades a lint warning.
type LintSeverity string

const (
	LintInfo LintSeverity = "info"
	LintWarn LintSeverity = "warn"
	LintHigh LintSeverity = "high"
)

// LintWarning is a configuration that is valid but probably unintended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings from Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast filters warnings at or above sev.
func (r LintResult) AtLeast(sev LintSeverity) LintResult {
	rank := map[LintSeverity]int{LintInfo: 0, LintWarn: 1, LintHigh: 2}
	var out LintResult
	for _, w := range r {
		if rank[w.Severity] >= rank[sev] {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports combinations that pass Validate but weaken the session.
// It never fails; callers decide which severities to act on.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Storage.Context == storage.ContextClient && c.Storage.Codec != "aead" {
		add("storage_not_encrypted", LintWarn, "client storage keeps tokens without authenticated encryption; set storage.codec=aead")
	}
	if c.Storage.Codec == "base64" {
		add("storage_base64_codec", LintInfo, "base64 is reversible obfuscation intended for development")
	}
	if c.Session.ValidateInterval >= c.Session.Timeout {
		add("validate_interval_exceeds_timeout", LintWarn, "the liveness check runs less often than the inactivity timeout")
	}
	if c.Token.RefreshThreshold >= c.Token.DefaultAccessTTL {
		add("refresh_threshold_exceeds_access_ttl", LintWarn, "every token is due for refresh as soon as it is issued")
	}
	if c.Token.RefreshCheckInterval > c.Token.RefreshThreshold {
		add("refresh_check_slower_than_threshold", LintWarn, "the refresh check can miss the whole refresh window")
	}
	if !c.Features.RateLimiting {
		add("rate_limiting_disabled", LintWarn, "burst protection is off; only lockout throttles login attempts")
	}
	if !c.Features.AuditLogging {
		add("audit_logging_disabled", LintHigh, "security events are not recorded")
	}
	if !c.Features.SessionManagement {
		add("session_management_disabled", LintWarn, "no background refresh or inactivity checks will run")
	}
	if c.Security.MaxLoginAttempts > 10 {
		add("lockout_threshold_high", LintWarn, "more than 10 attempts are allowed before lockout")
	}
	if c.Storage.Context == storage.ContextClient && !c.Storage.PreferDurable && c.Storage.VolatileTTL > 0 && c.Storage.VolatileTTL < c.Session.Timeout {
		add("volatile_ttl_below_session_timeout", LintInfo, "volatile storage expires before the inactivity timeout")
	}
	if c.API.BaseURL != "" {
		if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			add("api_plain_http", LintHigh, "credentials are sent to the identity API without TLS")
		}
	}
	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
