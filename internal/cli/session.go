package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in against the identity API and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.Login(cmd.Context(), goSession.LoginCredentials{Email: email, Password: password}) {
				for _, ae := range e.State().Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", ae.Error())
				}
				return lastError(e, "login")
			}
			st := e.State()
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (session %s)\n", logging.MaskEmail(st.User.Email), st.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			e.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.RefreshToken(cmd.Context()) {
				return lastError(e, "refresh")
			}
			st := e.State()
			fmt.Fprintf(cmd.OutOrStdout(), "access token valid until %s\n", st.Tokens.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session and the enforced policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			st := e.State()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:        %s\n", st.Status)
			if st.User != nil {
				fmt.Fprintf(out, "  User:        %s (%s)\n", st.User.ID, logging.MaskEmail(st.User.Email))
				fmt.Fprintf(out, "  Session:     %s\n", st.SessionID)
				fmt.Fprintf(out, "  Last active: %s\n", st.LastActivity.Format(time.RFC3339))
			}
			if st.Tokens != nil {
				fmt.Fprintf(out, "  Access exp:  %s\n", st.Tokens.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "  Attempts:    %d\n", st.LoginAttempts)
			if st.IsLocked {
				fmt.Fprintf(out, "  Locked until %s\n", st.LockoutUntil.Format(time.RFC3339))
			}

			r := e.SecurityReport()
			fmt.Fprintf(out, "Policy:\n")
			fmt.Fprintf(out, "  Storage:     %s (%s codec, encrypted=%t)\n", r.StorageBackend, r.StorageCodec, r.EncryptedAtRest)
			fmt.Fprintf(out, "  Lockout:     %d attempts, %s\n", r.MaxLoginAttempts, r.LockoutDuration)
			fmt.Fprintf(out, "  Timeout:     %s idle\n", r.SessionTimeout)
			fmt.Fprintf(out, "  Refresh:     %s before expiry, %d attempts\n", r.RefreshThreshold, r.MaxRefreshAttempts)
			return nil
		},
	}
}
