package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are shared by every remote subcommand.
type rootFlags struct {
	addr    string
	token   string
	rawJSON bool
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "fluxctl",
		Short:         "Operate a fluxmap migration-analytics server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.addr, "addr", "http://localhost:8000", "server base URL")
	cmd.PersistentFlags().StringVar(&flags.token, "token", "", "admin bearer token")
	cmd.PersistentFlags().BoolVar(&flags.rawJSON, "json", false, "print raw JSON responses")

	cmd.AddCommand(
		runCmd(flags),
		statusCmd(flags),
		resetCmd(flags),
		fetchCmd(flags),
		seedCmd(),
		tokenCmd(),
	)
	return cmd
}
