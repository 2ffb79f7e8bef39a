// Package token decides when access tokens are expired or due for refresh.
//
// It never talks to the identity service. The session engine asks
// [Lifecycle.ShouldRefresh] on a timer and performs the refresh itself,
// replacing the whole token pair on success.
//
// [ParseClaims] reads registered claims from a JWT without verifying the
// signature. The client does not hold the issuer's key, so the result is only
// used to recover expiry timestamps the identity service left out of its
// response.
package token
