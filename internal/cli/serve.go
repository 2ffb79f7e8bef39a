package cli

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/routes"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeDemoCmd() *cobra.Command {
	var (
		addr       string
		routesFile string
	)

	cmd := &cobra.Command{
		Use:   "serve-demo",
		Short: "Serve a small site guarded by the route table",
		Long:  "Serve a small site guarded by the route table. The process holds one session, so it is meant for trying out routing and lockout behavior, not for multiple users.",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := routes.DefaultTable()
			if routesFile != "" {
				loaded, err := routes.LoadTableFile(routesFile)
				if err != nil {
					return err
				}
				table = loaded
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			h, err := newDemoRouter(e, routes.NewController(table))
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           h,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("demo server listening", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8088", "Listen address")
	cmd.Flags().StringVar(&routesFile, "routes", "", "Route table YAML (built-in table if empty)")
	return cmd
}

// newDemoRouter mounts the guarded pages plus an unguarded /metrics.
func newDemoRouter(e *goSession.Engine, c *routes.Controller) (http.Handler, error) {
	metricsHandler, err := promexport.Handler(promexport.NewCollector(e))
	if err != nil {
		return nil, fmt.Errorf("metrics handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(c, e))

		r.Get("/login", func(w http.ResponseWriter, req *http.Request) {
			renderPage(w, http.StatusOK, "Sign in", `<form method="post" action="/login">
<input name="email" type="email" placeholder="Email">
<input name="password" type="password" placeholder="Password">
<button>Sign in</button></form>`)
		})
		r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
			if err := req.ParseForm(); err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			ctx := goSession.WithClientIP(req.Context(), req.RemoteAddr)
			ctx = goSession.WithUserAgent(ctx, req.UserAgent())
			ok := e.Login(ctx, goSession.LoginCredentials{
				Email:    req.PostForm.Get("email"),
				Password: req.PostForm.Get("password"),
			})
			if !ok {
				msg := "Sign in failed"
				if st := e.State(); st.Error != nil {
					msg = st.Error.Message
				}
				renderPage(w, http.StatusUnauthorized, "Sign in", html.EscapeString(msg))
				return
			}
			target := c.Table().AfterLoginRoute
			if saved, found := routes.ReadRedirectCookie(req, routes.CookieRedirectAfterLogin); found {
				target = saved
				routes.ClearRedirectCookie(w, routes.CookieRedirectAfterLogin)
			}
			http.Redirect(w, req, target, http.StatusSeeOther)
		})
		r.Post("/logout", func(w http.ResponseWriter, req *http.Request) {
			e.Logout(goSession.WithClientIP(req.Context(), req.RemoteAddr))
			target := "/"
			if saved, found := routes.ReadRedirectCookie(req, routes.CookieRedirectAfterLogout); found {
				target = saved
				routes.ClearRedirectCookie(w, routes.CookieRedirectAfterLogout)
			}
			http.Redirect(w, req, target, http.StatusSeeOther)
		})
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			d, _ := middleware.DecisionFromContext(req.Context())
			who, _ := middleware.PrincipalFromContext(req.Context())
			body := fmt.Sprintf("<p>%s is a %s page.</p>", html.EscapeString(d.Path), d.Tier)
			if who.Authenticated {
				body += fmt.Sprintf(`<p>Signed in as user %s.</p><form method="post" action="/logout"><button>Sign out</button></form>`, html.EscapeString(who.UserID))
			}
			renderPage(w, http.StatusOK, d.Path, body)
		})
	})
	return r, nil
}

func renderPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!doctype html><title>%s</title><h1>%s</h1>%s\n", html.EscapeString(title), html.EscapeString(title), body)
}
