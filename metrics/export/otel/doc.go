// Package otel mirrors goSession engine metrics into an OpenTelemetry meter.
//
// [New] registers one Int64ObservableCounter per engine counter and, for the
// API latency histogram, a cumulative bucket gauge keyed by an "le"
// attribute plus a count gauge. A single callback reads
// [goSession.Engine.MetricsSnapshot] on each collection cycle. Callers own
// the MeterProvider.
package otel
