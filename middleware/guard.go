package middleware

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/routes"
)

// SessionSource is the part of the engine the guard reads. *goSession.Engine
// satisfies it.
type SessionSource interface {
	State() goSession.State
	UpdateLastActivity(ctx context.Context)
}

type decisionContextKey struct{}

// DecisionFromContext returns the routing decision the guard allowed the
// request under.
func DecisionFromContext(ctx context.Context) (routes.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(routes.Decision)
	return d, ok
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal the guard resolved.
func PrincipalFromContext(ctx context.Context) (routes.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(routes.Principal)
	return p, ok
}

// Guard enforces the route table against the current session. Anonymous
// visitors on protected paths are sent to the login route with the original
// target remembered in a cookie; authenticated visitors on auth-only pages
// are sent back to that target, or to the after-login route. Role and
// permission denials answer 403. Allowed authenticated requests count as
// session activity.
func Guard(controller *routes.Controller, source SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if controller == nil || source == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			state := source.State()
			who := routes.PrincipalFromUser(state.User)
			who.Authenticated = state.IsAuthenticated

			d := controller.Decide(r.URL.Path, who)
			switch {
			case d.Redirect != "":
				target := d.Redirect
				switch d.Reason {
				case routes.ReasonLoginRequired:
					routes.SetRedirectCookie(w, r, routes.CookieRedirectAfterLogin, r.URL.RequestURI())
				case routes.ReasonAlreadyAuthenticated:
					if saved, ok := routes.ReadRedirectCookie(r, routes.CookieRedirectAfterLogin); ok {
						target = saved
					}
					routes.ClearRedirectCookie(w, routes.CookieRedirectAfterLogin)
				}
				http.Redirect(w, r, target, http.StatusFound)
				return
			case !d.Allow:
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			if who.Authenticated {
				source.UpdateLastActivity(r.Context())
			}
			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			ctx = context.WithValue(ctx, principalContextKey{}, who)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
