package routes

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSafeRedirect(t *testing.T) {
	const origin = "https://app.example.com"
	tests := []struct {
		target string
		origin string
		want   string
		ok     bool
	}{
		{"/dashboard?tab=2", "", "/dashboard?tab=2", true},
		{"/proposals/9", origin, "/proposals/9", true},
		{"https://app.example.com/proposals/1?x=y", origin, "/proposals/1?x=y", true},
		{"https://APP.example.com/p", origin, "/p", true},
		{"https://app.example.com/p", "", "", false},
		{"http://app.example.com/p", origin, "", false},
		{"https://evil.example.net/p", origin, "", false},
		{"https://user@app.example.com/p", origin, "", false},
		{"//evil.example.net/p", origin, "", false},
		{"/\\evil.example.net", origin, "", false},
		{"javascript:alert(1)", origin, "", false},
		{"dashboard", origin, "", false},
		{"", origin, "", false},
		{"   ", origin, "", false},
	}
	for _, tt := range tests {
		got, ok := SafeRedirect(tt.target, tt.origin)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("SafeRedirect(%q, %q) = (%q, %v), want (%q, %v)", tt.target, tt.origin, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRedirectCookieRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/proposals/9", nil)
	rec := httptest.NewRecorder()

	if !SetRedirectCookie(rec, req, CookieRedirectAfterLogin, "/proposals/9?tab=notes") {
		t.Fatal("expected cookie to be set")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieRedirectAfterLogin || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}
	if c.MaxAge != 600 {
		t.Fatalf("MaxAge = %d, want 600", c.MaxAge)
	}

	next := httptest.NewRequest(http.MethodGet, "http://app.example.com/login", nil)
	next.AddCookie(c)
	got, ok := ReadRedirectCookie(next, CookieRedirectAfterLogin)
	if !ok || got != "/proposals/9?tab=notes" {
		t.Fatalf("ReadRedirectCookie = (%q, %v)", got, ok)
	}
}

func TestSetRedirectCookieRejectsForeignTarget(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/", nil)
	rec := httptest.NewRecorder()
	if SetRedirectCookie(rec, req, CookieRedirectAfterLogout, "https://evil.example.net/") {
		t.Fatal("foreign target must be rejected")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("no cookie should be written")
	}
}

func TestReadRedirectCookieRejectsTamperedValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/login", nil)
	req.AddCookie(&http.Cookie{Name: CookieRedirectAfterLogin, Value: url.QueryEscape("https://evil.example.net/")})
	if _, ok := ReadRedirectCookie(req, CookieRedirectAfterLogin); ok {
		t.Fatal("tampered cookie must be ignored")
	}

	empty := httptest.NewRequest(http.MethodGet, "http://app.example.com/login", nil)
	if _, ok := ReadRedirectCookie(empty, CookieRedirectAfterLogin); ok {
		t.Fatal("missing cookie must report false")
	}
}

func TestClearRedirectCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearRedirectCookie(rec, CookieRedirectAfterLogin)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got %+v", cookies)
	}
}
