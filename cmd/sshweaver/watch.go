package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously sync the config file and the account",
	Long: `Watch polls the managed ssh_config for edits and exports them as they
happen, and runs a full import/export round on a fixed interval so
changes made on the account side land locally too. Health and metrics
endpoints are served while watching. Stop with SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, closer, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closer()

		return a.Watch(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
