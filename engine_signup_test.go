package goSession

import (
	"context"
	"testing"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
)

func validSignup() SignupCredentials {
	return SignupCredentials{
		Email:           testEmail,
		FirstName:       "Ana",
		LastName:        "Lima",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		AcceptTerms:     true,
	}
}

func TestSignupLogsIn(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.init(t)

	if !env.engine.Signup(context.Background(), validSignup()) {
		t.Fatalf("signup failed: %v", env.engine.State().Error)
	}
	s := env.engine.State()
	if !s.IsAuthenticated || s.User == nil {
		t.Fatalf("expected authenticated after signup, got %+v", s)
	}
	if _, signup, _, _ := env.api.calls(); signup != 1 {
		t.Fatalf("expected one signup call, got %d", signup)
	}
	events := env.events(AuditLoginSuccess)
	if len(events) != 1 || events[0].Details["reason"] != "auto_login_after_signup" {
		t.Fatalf("expected auto-login success event, got %+v", events)
	}
	if len(env.events(AuditSignupSuccess)) != 1 {
		t.Fatal("expected signup_success event")
	}
}

func TestSignupSucceedsWhenAutoLoginFails(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.init(t)
	env.api.loginFn = func(context.Context, string, string) (*identity.LoginResult, error) {
		return nil, autherr.New(autherr.CodeServer, "")
	}

	if !env.engine.Signup(context.Background(), validSignup()) {
		t.Fatal("signup should report success once the account exists")
	}
	s := env.engine.State()
	if s.User == nil || s.User.Email != testEmail {
		t.Fatalf("expected new user in state, got %+v", s.User)
	}
	if s.IsAuthenticated || s.Tokens != nil {
		t.Fatalf("auto-login failed, session must stay unauthenticated: %+v", s)
	}
	if s.Error == nil || s.Error.Code != autherr.CodeServer {
		t.Fatalf("auto-login failure should be recorded, got %v", s.Error)
	}

	if len(env.events(AuditSignupSuccess)) != 1 {
		t.Fatal("expected signup_success event")
	}
	failures := env.events(AuditLoginFailure)
	if len(failures) != 1 || failures[0].Details["reason"] != "auto_login_after_signup" {
		t.Fatalf("expected auto-login failure detail, got %+v", failures)
	}
	if env.engine.MetricsSnapshot().Counters[MetricAutoLoginFailure] != 1 {
		t.Fatal("auto-login failure metric not incremented")
	}
	if keys := env.storedKeys(t); len(keys) != 1 || keys[0] != env.auth.Key("security") {
		t.Fatalf("only security counters may be persisted, got %v", keys)
	}
}

func TestSignupValidationSkipsAPI(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.init(t)

	creds := validSignup()
	creds.ConfirmPassword = "Different!1"
	creds.AcceptTerms = false
	creds.FirstName = ""

	if env.engine.Signup(context.Background(), creds) {
		t.Fatal("expected failure")
	}
	if _, signup, _, _ := env.api.calls(); signup != 0 {
		t.Fatal("identity API called for invalid signup")
	}
	s := env.engine.State()
	if len(s.Errors) != 3 {
		t.Fatalf("expected 3 field errors, got %v", s.Errors)
	}
	if len(env.events(AuditSignupFailure)) != 1 {
		t.Fatal("expected signup_failure event")
	}
}

func TestSignupFailureDoesNotCountTowardLockout(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 2
	env := newTestEnv(t, cfg)
	env.init(t)
	env.api.signupFn = func(context.Context, identity.SignupRequest) (*identity.User, error) {
		return nil, autherr.NewField(autherr.CodeEmailExists, "email", "")
	}

	for i := 0; i < 3; i++ {
		if env.engine.Signup(context.Background(), validSignup()) {
			t.Fatal("duplicate signup succeeded")
		}
	}
	s := env.engine.State()
	if s.IsLocked || s.LoginAttempts != 0 {
		t.Fatalf("signup failures affected lockout: %+v", s)
	}
	if s.Error == nil || s.Error.Code != autherr.CodeEmailExists || s.Error.Field != "email" {
		t.Fatalf("expected EMAIL_EXISTS on email, got %v", s.Error)
	}
	if login, _, _, _ := env.api.calls(); login != 0 {
		t.Fatal("auto-login attempted after failed signup")
	}
}
