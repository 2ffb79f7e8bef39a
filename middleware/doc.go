// Package middleware adapts the route controller and the session engine to
// net/http.
//
// # Guards
//
//   - [Guard] classifies the request path, redirects or rejects, and
//     records session activity for allowed authenticated requests.
//
// The resolved [routes.Decision] and [routes.Principal] are injected into the
// request context for downstream handlers.
//
// # What this package must NOT do
//
//   - Log in, refresh or tear down sessions (the engine owns transitions).
//   - Redirect to targets that [routes.SafeRedirect] rejects.
package middleware
