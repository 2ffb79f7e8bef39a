package routes

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Cookie names used to carry a redirect target across the login round trip.
const (
	CookieRedirectAfterLogin  = "redirect_after_login"
	CookieRedirectAfterLogout = "redirect_after_logout"
)

// RedirectCookieTTL bounds how long a stored redirect target is honored.
const RedirectCookieTTL = 10 * time.Minute

// SafeRedirect accepts target only when it is a relative path or an
// absolute URL on origin. The returned value is always the path form.
// An empty origin accepts relative paths only.
func SafeRedirect(target, origin string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsAny(target, "\\\r\n\t") {
		return "", false
	}
	// Scheme-relative URLs point at another host.
	if strings.HasPrefix(target, "//") {
		return "", false
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" && u.Host == "" {
		if !strings.HasPrefix(u.Path, "/") {
			return "", false
		}
		return relative(u), true
	}

	if origin == "" || (u.Scheme != "http" && u.Scheme != "https") || u.User != nil {
		return "", false
	}
	o, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, o.Scheme) || !strings.EqualFold(u.Host, o.Host) {
		return "", false
	}
	return relative(u), true
}

func relative(u *url.URL) string {
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// RequestOrigin rebuilds the scheme and host the request arrived on.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// SetRedirectCookie stores target under name. Unsafe targets are dropped
// and reported with false.
func SetRedirectCookie(w http.ResponseWriter, r *http.Request, name, target string) bool {
	safe, ok := SafeRedirect(target, RequestOrigin(r))
	if !ok {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(safe),
		Path:     "/",
		MaxAge:   int(RedirectCookieTTL / time.Second),
		Expires:  time.Now().Add(RedirectCookieTTL),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// ReadRedirectCookie returns the stored target if present and still safe.
func ReadRedirectCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false
	}
	return SafeRedirect(raw, RequestOrigin(r))
}

// ClearRedirectCookie expires name on the client.
func ClearRedirectCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
