package cli

import (
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigCheckCmd(), newConfigShowCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var failOn string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and report lint warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			warnings := cfg.Lint()
			if len(warnings) == 0 {
				fmt.Fprintln(out, "config ok")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintf(out, "[%s] %s: %s\n", w.Severity, w.Code, w.Message)
			}
			if failOn == "" {
				return nil
			}
			if blocking := warnings.AtLeast(goSession.LintSeverity(failOn)); len(blocking) > 0 {
				return fmt.Errorf("%d lint warning(s) at or above %s", len(blocking), failOn)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero on warnings at or above this severity (info, warn, high)")
	return cmd
}

// Config carries mapstructure tags only, so the printed keys are the
// lowercased field names. The output is for reading, not for feeding back.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := cfg
			if shown.Storage.EncryptionKey != "" {
				shown.Storage.EncryptionKey = "********"
			}
			data, err := yaml.Marshal(shown)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
