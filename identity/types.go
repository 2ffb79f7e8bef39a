package identity

import (
	"strings"
	"time"
)

// User is the identity record returned by the identity service.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsActive    bool      `json:"is_active"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	Groups      []string  `json:"groups,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate engine-owned state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Groups = append([]string(nil), u.Groups...)
	out.Permissions = append([]string(nil), u.Permissions...)
	return &out
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Valid reports whether u carries the minimum fields a session needs.
func (u *User) Valid() bool {
	return u != nil && u.ID != "" && u.Email != ""
}

// TokenPair is an access token plus refresh token with independent expiries.
// A pair is replaced wholesale, never edited in place.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Clone returns a copy of p.
func (p *TokenPair) Clone() *TokenPair {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// Valid checks presence of both tokens and expiresAt < refreshExpiresAt.
func (p *TokenPair) Valid() bool {
	if p == nil || p.AccessToken == "" || p.RefreshToken == "" {
		return false
	}
	if p.ExpiresAt.IsZero() || p.RefreshExpiresAt.IsZero() {
		return false
	}
	return p.ExpiresAt.Before(p.RefreshExpiresAt)
}

// LoginCredentials is the payload of a login form.
type LoginCredentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

// SignupCredentials is the payload of a signup form.
type SignupCredentials struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	AcceptTerms     bool   `json:"accept_terms"`
}

// SignupRequest is what actually goes over the wire on signup.
type SignupRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Request builds the wire request from form credentials.
func (c SignupCredentials) Request() SignupRequest {
	return SignupRequest{
		Email:     strings.TrimSpace(c.Email),
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Password:  c.Password,
	}
}

// LoginResult is a successful login response.
type LoginResult struct {
	User   *User
	Tokens *TokenPair
}
