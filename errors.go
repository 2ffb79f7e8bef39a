package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/autherr"
)

// AuthError is the structured failure recorded in State.Error and
// State.Errors.
type AuthError = autherr.Error

// ErrorCode identifies an AuthError class.
type ErrorCode = autherr.Code

var (
	// ErrBuilderUsed is returned by a second call to Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrNoIdentityAPI is returned by Build when neither WithAPI nor
	// API.BaseURL supplies an identity service.
	ErrNoIdentityAPI = errors.New("identity API required: use WithAPI or set API BaseURL")
	// ErrEngineClosed is recorded when an operation runs after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// maxErrors bounds State.Errors.
const maxErrors = 20
