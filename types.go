package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/identity"
)

// Status is the position of the session on the state machine.
type Status uint8

const (
	// StatusUninitialized holds until Initialize completes. Consumers must
	// not trust IsAuthenticated before it.
	StatusUninitialized Status = iota
	StatusUnauthenticated
	StatusAuthenticating
	StatusAuthenticated
	// StatusRefreshing is a sub-state of StatusAuthenticated.
	StatusRefreshing
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// User and TokenPair are the identity service records the engine owns.
type (
	User              = identity.User
	TokenPair         = identity.TokenPair
	LoginCredentials  = identity.LoginCredentials
	SignupCredentials = identity.SignupCredentials
)

// State is a snapshot of the canonical session state. Every pointer and
// slice in it is a copy; mutating them does not affect the engine.
type State struct {
	User   *User
	Tokens *TokenPair

	// IsAuthenticated is true only when User and Tokens are both present and
	// the access token is unexpired at snapshot time.
	IsAuthenticated bool
	IsInitialized   bool
	IsLoading       bool
	IsRefreshing    bool

	Error  *AuthError
	Errors []*AuthError // newest first

	SessionID    string
	LastActivity time.Time

	LoginAttempts    int
	LastLoginAttempt time.Time
	IsLocked         bool
	LockoutUntil     time.Time

	Status Status
}

// Listener is notified with a fresh snapshot after every state change.
type Listener func(State)
