// Package prometheus adapts goSession engine metrics to a
// prometheus.Collector.
//
// [NewCollector] reads [goSession.Engine.MetricsSnapshot] on every scrape and
// emits one counter per engine counter (gosession_*_total) plus the
// gosession_api_latency_seconds histogram. [Handler] mounts the collector on
// a private registry; callers that already run a registry can register the
// Collector themselves.
package prometheus
