package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/token"
)

// Endpoints lists the identity service paths relative to the base URL.
type Endpoints struct {
	Login   string
	Signup  string
	Refresh string
	Logout  string
}

// DefaultEndpoints matches the travel-proposal backend routes.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:   "/api/auth/login/",
		Signup:  "/api/auth/register/",
		Refresh: "/api/auth/token/refresh/",
		Logout:  "/api/auth/logout/",
	}
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	BaseURL    string
	Endpoints  Endpoints
	HTTPClient *http.Client

	// Fallback lifetimes used when neither the response body nor the JWT
	// exp claim carries an expiry.
	DefaultAccessTTL  time.Duration
	DefaultRefreshTTL time.Duration

	Now func() time.Time
}

// HTTPClient implements API over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	endpoints  Endpoints
	httpClient *http.Client
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ API = (*HTTPClient)(nil)

// NewHTTPClient validates cfg and returns a client.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("identity: base URL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, errors.New("identity: base URL must be http or https")
	}

	ep := cfg.Endpoints
	def := DefaultEndpoints()
	if ep.Login == "" {
		ep.Login = def.Login
	}
	if ep.Signup == "" {
		ep.Signup = def.Signup
	}
	if ep.Refresh == "" {
		ep.Refresh = def.Refresh
	}
	if ep.Logout == "" {
		ep.Logout = def.Logout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	accessTTL := cfg.DefaultAccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.DefaultRefreshTTL
	if refreshTTL <= accessTTL {
		refreshTTL = 7 * 24 * time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &HTTPClient{
		baseURL:    base,
		endpoints:  ep,
		httpClient: hc,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}, nil
}

// wireTokens accepts both the explicit token envelope and the bare
// access/refresh shape.
type wireTokens struct {
	AccessToken      string     `json:"access_token"`
	RefreshToken     string     `json:"refresh_token"`
	Access           string     `json:"access"`
	Refresh          string     `json:"refresh"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at"`
	ExpiresIn        int64      `json:"expires_in"`
}

type loginResponse struct {
	User   *User       `json:"user"`
	Tokens *wireTokens `json:"tokens"`
	wireTokens
}

// Login authenticates email and password.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, autherr.Wrap(autherr.CodeUnknown, "", err)
	}

	var out loginResponse
	if err := c.do(ctx, http.MethodPost, c.endpoints.Login, "", body, opLogin, &out); err != nil {
		return nil, err
	}

	wt := out.wireTokens
	if out.Tokens != nil {
		wt = *out.Tokens
	}
	pair, err := c.tokenPair(wt, "")
	if err != nil {
		return nil, err
	}
	if !out.User.Valid() {
		return nil, autherr.New(autherr.CodeServer, "Login response did not include a user")
	}
	return &LoginResult{User: out.User, Tokens: pair}, nil
}

// Signup creates an account. It does not log the user in.
func (c *HTTPClient) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, autherr.Wrap(autherr.CodeUnknown, "", err)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.endpoints.Signup, "", body, opSignup, &raw); err != nil {
		return nil, err
	}

	// The service answers either {"user": {...}} or the bare user object.
	var wrapped struct {
		User *User `json:"user"`
	}
	_ = json.Unmarshal(raw, &wrapped)
	user := wrapped.User
	if user == nil {
		user = &User{}
		_ = json.Unmarshal(raw, user)
	}
	if !user.Valid() {
		return nil, autherr.New(autherr.CodeServer, "Signup response did not include a user")
	}
	return user, nil
}

// RefreshToken exchanges refreshToken for a new pair. When the service does
// not rotate refresh tokens, the old one is carried into the new pair.
func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return nil, autherr.Wrap(autherr.CodeUnknown, "", err)
	}

	var out loginResponse
	if err := c.do(ctx, http.MethodPost, c.endpoints.Refresh, "", body, opRefresh, &out); err != nil {
		return nil, err
	}

	wt := out.wireTokens
	if out.Tokens != nil {
		wt = *out.Tokens
	}
	return c.tokenPair(wt, refreshToken)
}

// Logout revokes the session server-side.
func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, c.endpoints.Logout, accessToken, []byte("{}"), opLogout, nil)
}

type operation int

const (
	opLogin operation = iota
	opSignup
	opRefresh
	opLogout
)

func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, body []byte, op operation, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return autherr.Wrap(autherr.CodeUnknown, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return autherr.From(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return autherr.From(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, data, op)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return autherr.Wrap(autherr.CodeServer, "The server returned an unreadable response", err)
	}
	return nil
}

func (c *HTTPClient) tokenPair(wt wireTokens, previousRefresh string) (*TokenPair, error) {
	access := firstNonEmpty(wt.AccessToken, wt.Access)
	refresh := firstNonEmpty(wt.RefreshToken, wt.Refresh, previousRefresh)
	if access == "" || refresh == "" {
		return nil, autherr.New(autherr.CodeTokenInvalid, "The server did not return a usable token pair")
	}

	now := c.now().UTC()
	pair := &TokenPair{AccessToken: access, RefreshToken: refresh}

	switch {
	case wt.ExpiresAt != nil:
		pair.ExpiresAt = wt.ExpiresAt.UTC()
	case wt.ExpiresIn > 0:
		pair.ExpiresAt = now.Add(time.Duration(wt.ExpiresIn) * time.Second)
	default:
		if exp, ok := token.ExpiryFromJWT(access); ok {
			pair.ExpiresAt = exp
		} else {
			pair.ExpiresAt = now.Add(c.accessTTL)
		}
	}

	if wt.RefreshExpiresAt != nil {
		pair.RefreshExpiresAt = wt.RefreshExpiresAt.UTC()
	} else if exp, ok := token.ExpiryFromJWT(refresh); ok {
		pair.RefreshExpiresAt = exp
	} else {
		pair.RefreshExpiresAt = now.Add(c.refreshTTL)
	}

	if !pair.Valid() {
		return nil, autherr.New(autherr.CodeTokenInvalid, "The server returned inconsistent token expiries")
	}
	return pair, nil
}

// errorBody covers the detail/code shape and DRF-style per-field lists.
type errorBody struct {
	Detail  string `json:"detail"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func mapStatus(status int, data []byte, op operation) *autherr.Error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	msg := firstNonEmpty(eb.Detail, eb.Message, eb.Error)

	switch {
	case status == http.StatusBadRequest:
		if field, fieldMsg, ok := firstFieldError(data); ok {
			if field == "email" && op == opSignup && strings.Contains(strings.ToLower(fieldMsg), "exist") {
				return autherr.NewField(autherr.CodeEmailExists, "email", fieldMsg)
			}
			if field == "non_field_errors" {
				if op == opLogin {
					return autherr.New(autherr.CodeInvalidCredentials, fieldMsg)
				}
				return autherr.New(autherr.CodeValidationFailed, fieldMsg)
			}
			return autherr.NewField(autherr.CodeValidationFailed, field, fieldMsg)
		}
		if op == opLogin {
			return autherr.New(autherr.CodeInvalidCredentials, msg)
		}
		if op == opRefresh {
			return autherr.New(autherr.CodeTokenInvalid, msg)
		}
		return autherr.New(autherr.CodeValidationFailed, msg)
	case status == http.StatusUnauthorized:
		if op == opRefresh || op == opLogout {
			if strings.Contains(strings.ToLower(eb.Code), "expired") {
				return autherr.New(autherr.CodeTokenExpired, msg)
			}
			return autherr.New(autherr.CodeTokenInvalid, msg)
		}
		return autherr.New(autherr.CodeInvalidCredentials, msg)
	case status == http.StatusForbidden:
		if eb.Code == "csrf_failed" || strings.Contains(strings.ToLower(msg), "csrf") {
			return autherr.New(autherr.CodeCSRF, msg)
		}
		return autherr.New(autherr.CodeAccountDisabled, msg)
	case status == http.StatusConflict:
		return autherr.NewField(autherr.CodeEmailExists, "email", msg)
	case status == http.StatusLocked:
		return autherr.New(autherr.CodeAccountLocked, msg)
	case status == http.StatusTooManyRequests:
		return autherr.New(autherr.CodeRateLimited, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return autherr.New(autherr.CodeTimeout, msg)
	case status >= 500:
		return autherr.New(autherr.CodeServer, msg)
	default:
		return autherr.New(autherr.CodeUnknown, fmt.Sprintf("Unexpected response status %d", status))
	}
}

// firstFieldError picks a deterministic field error from a DRF body such as
// {"email": ["Enter a valid email address."]}.
func firstFieldError(data []byte) (string, string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", "", false
	}

	fields := make([]string, 0, len(raw))
	for k := range raw {
		switch k {
		case "detail", "code", "message", "error":
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		var list []string
		if err := json.Unmarshal(raw[field], &list); err == nil && len(list) > 0 {
			return field, list[0], true
		}
		var single string
		if err := json.Unmarshal(raw[field], &single); err == nil && single != "" {
			return field, single, true
		}
	}
	return "", "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
