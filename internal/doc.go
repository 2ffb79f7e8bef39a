// Package internal groups helpers that are private to goSession.
//
// # Sub-packages
//
//   - audit: bounded audit log, async dispatch and sinks (JSON, channel, Kafka)
//   - cli: the sessionctl command tree
//   - limiters: login lockout policy over the persisted security counters
//   - logging: zap logger construction and identifier masking
//   - rate: per-key burst limiter for login and signup attempts
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API except through
//     aliases in the root package.
package internal
