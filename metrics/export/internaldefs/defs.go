package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins, including validation and API failures."},
	{ID: goSession.MetricLoginLocked, Name: "gosession_login_locked_total", Help: "Login attempts rejected by an active lockout."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Login or signup attempts rejected by the burst limiter."},
	{ID: goSession.MetricSignupSuccess, Name: "gosession_signup_success_total", Help: "Accounts created."},
	{ID: goSession.MetricSignupFailure, Name: "gosession_signup_failure_total", Help: "Failed signups."},
	{ID: goSession.MetricAutoLoginFailure, Name: "gosession_auto_login_failure_total", Help: "Signups whose automatic follow-up login failed."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts."},
	{ID: goSession.MetricLogoutRemoteFailure, Name: "gosession_logout_remote_failure_total", Help: "Logouts whose remote call failed."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Token refreshes that tore the session down."},
	{ID: goSession.MetricRefreshRetry, Name: "gosession_refresh_retry_total", Help: "Refresh calls retried after a transport failure."},
	{ID: goSession.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Sessions ended by inactivity."},
	{ID: goSession.MetricAccountLocked, Name: "gosession_account_locked_total", Help: "Lockouts triggered."},
	{ID: goSession.MetricStaleResultDiscarded, Name: "gosession_stale_result_discarded_total", Help: "Delayed login or refresh results superseded by a newer transition."},
	{ID: goSession.MetricStorageSelfHeal, Name: "gosession_storage_self_heal_total", Help: "Corrupted stored records cleared."},
	{ID: goSession.MetricAPITimeout, Name: "gosession_api_timeout_total", Help: "Identity API calls that exceeded the configured timeout."},
	{ID: goSession.MetricActivityCoalesced, Name: "gosession_activity_coalesced_total", Help: "Activity updates folded into an in-flight write."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricAPILatency, Name: "gosession_api_latency_seconds", Help: "Identity API call latency."},
}

// HistogramBounds are the upper bounds, in seconds, matching the engine's
// bucket layout.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundValues are HistogramBounds as numbers, without +Inf.
var HistogramBoundValues = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix names each bucket for exporters that flatten
// histograms into one gauge per bucket.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the engine's bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
