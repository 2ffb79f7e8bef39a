// Package goSession is a client-side session and identity-security engine.
// It keeps one canonical session per process, talks to a remote identity
// API for login, signup, refresh and logout, and persists the session so it
// survives restarts.
//
// Engine methods are safe to call from multiple goroutines after
// construction through [Builder.Build]. Every public operation resolves to a
// result plus recorded errors; none of them panics or returns raw transport
// failures.
//
// # Architecture boundaries
//
// goSession is the public surface: [Engine], [Builder], [Config] and the
// value types. Validation lives in validation, the storage contract and its
// backends in storage, token timing in token, the remote contract in
// identity and route classification in routes. Lockout, rate limiting and
// the audit log are internal.
//
// # What this package must NOT do
//
//   - Let a login or refresh that resolves after a logout bring the session back.
//   - Call the identity API for credentials that fail local validation or
//     while the account is locked.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
