package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}

			lgr := newLogger(cfg)

			if cfg.Debug {
				fmt.Println("============")
				fmt.Println(print.MaybePrettyJSON(cfg))
				fmt.Println("============")
			}

			app, err := NewApp(cmd.Context(), cfg, lgr)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(cmd.Context(), exitSignals())
		},
	}

	cmd.Flags().String("address", "", "HTTP listen address")
	cmd.Flags().Bool("migrate", false, "run migrations before serving")

	return cmd
}

func exitSignals() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
