package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with the serve and migrate subcommands.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account signup, activation and session service",
		Long: `accounts runs the account lifecycle API: signup with emailed
activation tokens, login issuing access and refresh tokens, and an
authenticated status endpoint.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().String("driver", "", "database driver: sqlite or postgres")
	cmd.PersistentFlags().String("dsn", "", "database connection string")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(NewServeCmd(&configFile))
	cmd.AddCommand(NewMigrateCmd(&configFile))

	return cmd
}
