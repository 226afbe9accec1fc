package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/discovery"
)

var flagLinks bool

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured targets and, optionally, discovered tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Browser: %s\n", cfg.TargetBrowser)
			fmt.Fprintln(out, "Targets:")
			for _, t := range cfg.Targets() {
				fmt.Fprintf(out, "  - %s [%s] %s\n", t.Name, t.Device, strings.Join(t.LaunchArgs, " "))
			}
			if !flagLinks {
				return nil
			}

			links, err := discovery.NewFetcher(cfg.TestURL, logger).Links(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTests (%d):\n", len(links))
			for _, l := range links {
				fmt.Fprintf(out, "  - %s (%s)\n", l.Suite(), l)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagLinks, "links", false, "also fetch and list the test modules")
	return cmd
}
