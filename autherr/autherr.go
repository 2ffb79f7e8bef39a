package autherr

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Code identifies an error class in the engine taxonomy.
type Code string

const (
	// validation
	CodeMissingEmail     Code = "MISSING_EMAIL"
	CodeInvalidEmail     Code = "INVALID_EMAIL"
	CodeMissingPassword  Code = "MISSING_PASSWORD"
	CodeWeakPassword     Code = "WEAK_PASSWORD"
	CodePasswordMismatch Code = "PASSWORD_MISMATCH"
	CodeMissingName      Code = "MISSING_NAME"
	CodeInvalidName      Code = "INVALID_NAME"
	CodeTermsNotAccepted Code = "TERMS_NOT_ACCEPTED"
	CodeValidationFailed Code = "VALIDATION_ERROR"

	// authentication
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeAccountDisabled    Code = "ACCOUNT_DISABLED"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeTokenInvalid       Code = "TOKEN_INVALID"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeEmailExists        Code = "EMAIL_EXISTS"

	// transport
	CodeNetwork Code = "NETWORK_ERROR"
	CodeTimeout Code = "TIMEOUT_ERROR"
	CodeServer  Code = "SERVER_ERROR"

	// security
	CodeRateLimited        Code = "RATE_LIMIT_EXCEEDED"
	CodeSuspiciousActivity Code = "SUSPICIOUS_ACTIVITY"
	CodeCSRF               Code = "CSRF_ERROR"

	// system
	CodeUnknown              Code = "UNKNOWN_ERROR"
	CodeInitializationFailed Code = "INITIALIZATION_FAILED"
)

// Severity grades how urgently an error needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category groups codes by where they originate.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryTransport      Category = "transport"
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
)

type codeInfo struct {
	category Category
	severity Severity
	message  string
}

var codes = map[Code]codeInfo{
	CodeMissingEmail:         {CategoryValidation, SeverityLow, "Email is required"},
	CodeInvalidEmail:         {CategoryValidation, SeverityLow, "Please enter a valid email address"},
	CodeMissingPassword:      {CategoryValidation, SeverityLow, "Password is required"},
	CodeWeakPassword:         {CategoryValidation, SeverityLow, "Password does not meet the security requirements"},
	CodePasswordMismatch:     {CategoryValidation, SeverityLow, "Passwords do not match"},
	CodeMissingName:          {CategoryValidation, SeverityLow, "Name is required"},
	CodeInvalidName:          {CategoryValidation, SeverityLow, "Name contains invalid characters"},
	CodeTermsNotAccepted:     {CategoryValidation, SeverityLow, "You must accept the terms and conditions"},
	CodeValidationFailed:     {CategoryValidation, SeverityLow, "Some fields are invalid"},
	CodeInvalidCredentials:   {CategoryAuthentication, SeverityMedium, "Invalid email or password"},
	CodeAccountLocked:        {CategoryAuthentication, SeverityHigh, "Account is temporarily locked"},
	CodeAccountDisabled:      {CategoryAuthentication, SeverityHigh, "Account is disabled"},
	CodeTokenExpired:         {CategoryAuthentication, SeverityMedium, "Your session token has expired"},
	CodeTokenInvalid:         {CategoryAuthentication, SeverityMedium, "Your session token is invalid"},
	CodeSessionExpired:       {CategoryAuthentication, SeverityMedium, "Your session has expired, please sign in again"},
	CodeEmailExists:          {CategoryAuthentication, SeverityLow, "An account with this email already exists"},
	CodeNetwork:              {CategoryTransport, SeverityMedium, "Network error, please check your connection"},
	CodeTimeout:              {CategoryTransport, SeverityMedium, "The request timed out"},
	CodeServer:               {CategoryTransport, SeverityHigh, "The server encountered an error"},
	CodeRateLimited:          {CategorySecurity, SeverityHigh, "Too many attempts, please slow down"},
	CodeSuspiciousActivity:   {CategorySecurity, SeverityCritical, "Suspicious activity detected"},
	CodeCSRF:                 {CategorySecurity, SeverityCritical, "Request could not be verified"},
	CodeUnknown:              {CategorySystem, SeverityHigh, "An unexpected error occurred"},
	CodeInitializationFailed: {CategorySystem, SeverityCritical, "Failed to restore the session"},
}

// CategoryOf reports the taxonomy bucket for code. Unknown codes map to system.
func CategoryOf(code Code) Category {
	if info, ok := codes[code]; ok {
		return info.category
	}
	return CategorySystem
}

// SeverityOf reports the default severity for code.
func SeverityOf(code Code) Severity {
	if info, ok := codes[code]; ok {
		return info.severity
	}
	return SeverityHigh
}

// DefaultMessage returns the user-facing message used when none is supplied.
func DefaultMessage(code Code) string {
	if info, ok := codes[code]; ok {
		return info.message
	}
	return codes[CodeUnknown].message
}

// Retryable reports whether the failure is transient transport trouble.
func Retryable(code Code) bool {
	return CategoryOf(code) == CategoryTransport
}

// Error is the structured failure surfaced by every engine operation.
type Error struct {
	ID        string    `json:"id"`
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field != "" {
		return string(e.Code) + ": " + e.Field + ": " + e.Message
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error carrying the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Category reports the taxonomy bucket of e.
func (e *Error) Category() Category {
	return CategoryOf(e.Code)
}

// Sentinels for errors.Is checks. They carry no id or timestamp.
var (
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials}
	ErrAccountLocked      = &Error{Code: CodeAccountLocked}
	ErrAccountDisabled    = &Error{Code: CodeAccountDisabled}
	ErrTokenExpired       = &Error{Code: CodeTokenExpired}
	ErrTokenInvalid       = &Error{Code: CodeTokenInvalid}
	ErrSessionExpired     = &Error{Code: CodeSessionExpired}
	ErrNetwork            = &Error{Code: CodeNetwork}
	ErrTimeout            = &Error{Code: CodeTimeout}
	ErrServer             = &Error{Code: CodeServer}
	ErrRateLimited        = &Error{Code: CodeRateLimited}
	ErrUnknown            = &Error{Code: CodeUnknown}
)

// New builds an Error with a fresh id and the current time. An empty message
// falls back to the code's default text.
func New(code Code, message string) *Error {
	if message == "" {
		message = DefaultMessage(code)
	}
	return &Error{
		ID:        "err_" + uuid.NewString(),
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Severity:  SeverityOf(code),
	}
}

// NewField builds a field-tagged validation error.
func NewField(code Code, field, message string) *Error {
	e := New(code, message)
	e.Field = field
	return e
}

// Wrap builds an Error that keeps cause reachable through errors.Unwrap.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// From maps an arbitrary error into the taxonomy. Existing *Error values are
// returned unchanged.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTimeout, "", err)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(CodeNetwork, "The request was cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(CodeTimeout, "", err)
		}
		return Wrap(CodeNetwork, "", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return Wrap(CodeNetwork, "", err)
	}

	return Wrap(CodeUnknown, "", err)
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}
