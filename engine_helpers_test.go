package goSession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/storage"
)

const (
	testEmail    = "ana@example.com"
	testPassword = "Tr1p!Planner"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeAPI accepts testEmail/testPassword and counts every call. Hooks
// override the default behavior per test.
type fakeAPI struct {
	clock *fakeClock

	mu           sync.Mutex
	loginCalls   int
	signupCalls  int
	refreshCalls int
	logoutCalls  int
	issued       int

	loginFn   func(ctx context.Context, email, password string) (*identity.LoginResult, error)
	signupFn  func(ctx context.Context, req identity.SignupRequest) (*identity.User, error)
	refreshFn func(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
	logoutErr error
}

func newFakeAPI(clock *fakeClock) *fakeAPI {
	return &fakeAPI{clock: clock}
}

func testUser() *identity.User {
	return &identity.User{
		ID:        "7",
		Email:     testEmail,
		FirstName: "Ana",
		LastName:  "Lima",
		IsActive:  true,
		Groups:    []string{"agents"},
	}
}

func (f *fakeAPI) pair() *identity.TokenPair {
	f.mu.Lock()
	f.issued++
	n := f.issued
	f.mu.Unlock()
	now := f.clock.Now()
	return &identity.TokenPair{
		AccessToken:      "access-" + itoa(n),
		RefreshToken:     "refresh-" + itoa(n),
		ExpiresAt:        now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, email, password)
	}
	if email != testEmail || password != testPassword {
		return nil, autherr.New(autherr.CodeInvalidCredentials, "")
	}
	return &identity.LoginResult{User: testUser(), Tokens: f.pair()}, nil
}

func (f *fakeAPI) Signup(ctx context.Context, req identity.SignupRequest) (*identity.User, error) {
	f.mu.Lock()
	f.signupCalls++
	fn := f.signupFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	u := testUser()
	u.Email = req.Email
	u.FirstName = req.FirstName
	u.LastName = req.LastName
	return u, nil
}

func (f *fakeAPI) RefreshToken(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, refreshToken)
	}
	return f.pair(), nil
}

func (f *fakeAPI) Logout(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) calls() (login, signup, refresh, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.signupCalls, f.refreshCalls, f.logoutCalls
}

type testEnv struct {
	engine  *Engine
	api     *fakeAPI
	clock   *fakeClock
	backend *storage.MemoryBackend
	auth    *storage.AuthStorage
}

// testConfig disables the background tickers and the burst limiter so
// tests drive every transition explicitly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Features.SessionManagement = false
	cfg.Features.RateLimiting = false
	cfg.Token.RefreshRetryDelay = 0
	cfg.Storage.Context = storage.ContextServer
	return cfg
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, cfg, storage.NewMemoryBackend())
}

func newTestEnvWithBackend(t *testing.T, cfg Config, backend *storage.MemoryBackend) *testEnv {
	t.Helper()
	clock := newFakeClock()
	api := newFakeAPI(clock)

	e, err := New().
		WithConfig(cfg).
		WithAPI(api).
		WithBackend(backend).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	return &testEnv{
		engine:  e,
		api:     api,
		clock:   clock,
		backend: backend,
		auth:    storage.NewAuthStorage(storage.New(backend, storage.PlainCodec{}, nil), cfg.Storage.KeyPrefix, nil),
	}
}

func (env *testEnv) init(t *testing.T) {
	t.Helper()
	env.engine.Initialize(context.Background())
	if !env.engine.State().IsInitialized {
		t.Fatal("engine not initialized")
	}
}

func (env *testEnv) login(t *testing.T) {
	t.Helper()
	if !env.engine.Login(context.Background(), LoginCredentials{Email: testEmail, Password: testPassword}) {
		t.Fatalf("login failed: %v", env.engine.State().Error)
	}
}

func (env *testEnv) events(typ AuditType) []AuditEvent {
	return env.engine.AuditLog().Events(AuditFilter{Type: typ})
}

// storedKeys lists the session keys present in the backend.
func (env *testEnv) storedKeys(t *testing.T) []string {
	t.Helper()
	var present []string
	for _, key := range env.auth.Keys() {
		_, ok, err := env.backend.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("backend get %s: %v", key, err)
		}
		if ok {
			present = append(present, key)
		}
	}
	return present
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
