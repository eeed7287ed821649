package main

import (
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations for the configured database driver.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}

			lgr := newLogger(cfg)
			logger := lgr.GetLogger("accounts:migrate")

			db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			logger.Info("running migrations", "driver", cfg.Database.Driver)
			if err := repository.Migrate(cmd.Context(), db, logger); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "migration failed").
					WithTextCode("MIGRATION_FAILED")
			}

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
