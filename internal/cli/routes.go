package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/MrEthical07/goSession/routes"
	"github.com/spf13/cobra"
)

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Validate and query route tables",
	}
	cmd.AddCommand(newRoutesCheckCmd())
	return cmd
}

func newRoutesCheckCmd() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "check [routes.yaml]",
		Short: "Validate a route table and classify sample paths",
		Long:  "Validate a route table and classify sample paths. Without a file the built-in table is checked.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := routes.DefaultTable()
			if len(args) == 1 {
				loaded, err := routes.LoadTableFile(args[0])
				if err != nil {
					return err
				}
				table = loaded
			} else if err := table.Validate(); err != nil {
				return err
			}

			c := routes.NewController(table)
			t := c.Table()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "routes ok: %d exact, %d public, %d auth-only, %d protected, %d admin prefixes\n",
				len(t.Routes), len(t.Public), len(t.AuthOnly), len(t.Protected), len(t.Admin))
			fmt.Fprintf(out, "login %s, after login %s\n", t.LoginRoute, t.AfterLoginRoute)
			if len(paths) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tTIER\tANONYMOUS\tSIGNED IN")
			for _, p := range paths {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", routes.Normalize(p), c.Classify(p), redirectColumn(c, p, false), redirectColumn(c, p, true))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&paths, "path", nil, "Path to classify (repeatable)")
	return cmd
}

func redirectColumn(c *routes.Controller, p string, authenticated bool) string {
	if target, ok := c.RedirectURL(p, authenticated); ok {
		return "-> " + target
	}
	return "allow"
}
