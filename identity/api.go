package identity

import "context"

// API is the remote identity service consumed by the session engine.
//
// Implementations must translate transport and protocol failures into
// *autherr.Error values. The engine bounds every call with its own timeout,
// so implementations should honor ctx cancellation.
type API interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Signup(ctx context.Context, req SignupRequest) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}
