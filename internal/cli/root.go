// Package cli implements the sessionctl command tree.
package cli

import (
	"context"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/autherr"
	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig    string
	flagAPIURL    string
	flagLogLevel  string
	flagLogFormat string

	cfg    goSession.Config
	logger *zap.Logger
)

// NewRootCmd creates the root cobra command for sessionctl.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect and drive a goSession store",
		Long:  "sessionctl validates configuration and route tables, drives login and refresh against the identity API, and reads the audit log.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := goSession.LoadConfig(flagConfig)
			if err != nil {
				return err
			}
			if flagAPIURL != "" {
				loaded.API.BaseURL = flagAPIURL
			}
			level, format := loaded.Logging.Level, loaded.Logging.Format
			if flagLogLevel != "" {
				level = flagLogLevel
			}
			if flagLogFormat != "" {
				format = flagLogFormat
			}
			l, err := logging.New(level, format)
			if err != nil {
				return err
			}
			cfg, logger = loaded, l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (yaml, json or toml); GOSESSION_* env overrides")
	root.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Identity API base URL (overrides api.base_url)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (json, console)")

	root.AddCommand(
		newConfigCmd(),
		newRoutesCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newRefreshCmd(),
		newStatusCmd(),
		newAuditCmd(),
		newServeDemoCmd(),
	)
	return root
}

// offlineAPI stands in when no base URL is configured, so commands that
// only read local state still build an engine.
type offlineAPI struct{}

func errOffline() error {
	return autherr.New(autherr.CodeNetwork, "identity API base URL is not configured")
}

func (offlineAPI) Login(context.Context, string, string) (*identity.LoginResult, error) {
	return nil, errOffline()
}

func (offlineAPI) Signup(context.Context, identity.SignupRequest) (*identity.User, error) {
	return nil, errOffline()
}

func (offlineAPI) RefreshToken(context.Context, string) (*identity.TokenPair, error) {
	return nil, errOffline()
}

func (offlineAPI) Logout(context.Context, string) error { return errOffline() }

// openEngine builds and initializes an engine from the loaded config. The
// caller closes it.
func openEngine(ctx context.Context) (*goSession.Engine, error) {
	b := goSession.New().WithConfig(cfg).WithLogger(logger)
	if cfg.API.BaseURL == "" {
		b = b.WithAPI(offlineAPI{})
	}
	e, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	e.Initialize(ctx)
	if st := e.State(); st.Error != nil && st.Error.Code == autherr.CodeInitializationFailed {
		_ = e.Close()
		return nil, st.Error
	}
	return e, nil
}

// lastError turns the newest recorded error into a command failure.
func lastError(e *goSession.Engine, op string) error {
	if st := e.State(); st.Error != nil {
		return fmt.Errorf("%s: %w", op, st.Error)
	}
	return fmt.Errorf("%s failed", op)
}
