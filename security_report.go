package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/storage"
)

// SecurityReport summarizes the policy an engine enforces.
type SecurityReport struct {
	MaxLoginAttempts      int
	LockoutDuration       time.Duration
	SessionTimeout        time.Duration
	RefreshThreshold      time.Duration
	MaxRefreshAttempts    int
	StorageBackend        storage.Kind
	StorageCodec          string
	EncryptedAtRest       bool
	AuditLoggingActive    bool
	SessionManagement     bool
	RateLimitingActive    bool
	PasswordMinLength     int
	PasswordPolicyOnLogin bool
	APITimeout            time.Duration
}

// SecurityReport describes the policy the engine was built with.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	codec := ""
	if c := e.store.Codec(); c != nil {
		codec = c.Name()
	}

	return SecurityReport{
		MaxLoginAttempts:      e.lockout.MaxAttempts,
		LockoutDuration:       e.lockout.Duration,
		SessionTimeout:        e.config.Session.Timeout,
		RefreshThreshold:      e.lifecycle.Threshold,
		MaxRefreshAttempts:    e.config.Token.MaxRefreshAttempts,
		StorageBackend:        e.backend.Kind(),
		StorageCodec:          codec,
		EncryptedAtRest:       codec == "aead",
		AuditLoggingActive:    e.auditLog != nil,
		SessionManagement:     e.config.Features.SessionManagement,
		RateLimitingActive:    e.limiter != nil,
		PasswordMinLength:     e.config.Validation.PasswordMinLength,
		PasswordPolicyOnLogin: e.config.Validation.EnforcePolicyOnLogin,
		APITimeout:            e.config.API.Timeout,
	}
}
