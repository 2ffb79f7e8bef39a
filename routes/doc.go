// Package routes classifies application paths into public, auth-only,
// protected and admin tiers and decides where a request should go.
//
// A [Table] is configured once at startup and read-only afterwards; a
// [Controller] answers lookups against it without locking. Unknown paths
// require authentication.
//
// # What this package must NOT do
//
//   - Read or mutate session state (callers pass a [Principal]).
//   - Follow a redirect target that is not relative or same-origin.
package routes
