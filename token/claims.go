package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token cannot be decoded as a JWT.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the subset of JWT claims the client cares about.
type Claims struct {
	UserID    string `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes tokenStr without verifying its signature.
func ParseClaims(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiryFromJWT returns the exp claim of tokenStr if it has one.
func ExpiryFromJWT(tokenStr string) (time.Time, bool) {
	claims, err := ParseClaims(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.UTC(), true
}
