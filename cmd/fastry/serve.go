package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/searchktools/fastry/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Loads the route table, starts the execution contexts and serves requests until
SIGINT or SIGTERM. Queued requests are finished before the process exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if err := application.Run(ctx); err != nil {
			return err
		}

		if printStats, _ := cmd.Flags().GetBool("stats"); printStats {
			fmt.Fprintln(os.Stderr, application.Engine().StatsText())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on")
	serveCmd.Flags().String("admin-addr", "", "Address for the admin endpoints (disabled when empty)")
	serveCmd.Flags().Bool("stats", false, "Print dispatcher statistics on exit")
}
