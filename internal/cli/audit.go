package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read or clear the persisted audit log",
	}
	cmd.AddCommand(newAuditListCmd(), newAuditStatsCmd(), newAuditClearCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		eventType string
		severity  string
		userID    string
		since     time.Duration
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			log := e.AuditLog()
			if log == nil {
				return fmt.Errorf("audit logging is disabled")
			}
			f := goSession.AuditFilter{
				UserID:   userID,
				Type:     goSession.AuditType(eventType),
				Severity: goSession.AuditSeverity(severity),
				Limit:    limit,
			}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			events := log.Events(f)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "no events")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tSEVERITY\tUSER\tSESSION")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ev.Timestamp.Format(time.RFC3339), ev.Type, ev.Severity, dash(ev.UserID), dash(ev.SessionID))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "Only events of this type (e.g. login_failure)")
	cmd.Flags().StringVar(&severity, "severity", "", "Only events of this severity (info, warning, error, critical)")
	cmd.Flags().StringVar(&userID, "user", "", "Only events for this user id")
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to print (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON")
	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			log := e.AuditLog()
			if log == nil {
				return fmt.Errorf("audit logging is disabled")
			}
			s := log.Stats(time.Now())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:     %d\n", s.Total)
			fmt.Fprintf(out, "Last 24h:  %d\n", s.Last24h)
			fmt.Fprintf(out, "Last 7d:   %d\n", s.Last7d)

			types := make([]string, 0, len(s.ByType))
			for t := range s.ByType {
				types = append(types, string(t))
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(out, "  %-22s %d\n", t, s.ByType[goSession.AuditType(t)])
			}
			return nil
		},
	}
}

func newAuditClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every audit event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the audit log without --yes")
			}
			e, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			log := e.AuditLog()
			if log == nil {
				return fmt.Errorf("audit logging is disabled")
			}
			if err := log.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear audit log: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "audit log cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
