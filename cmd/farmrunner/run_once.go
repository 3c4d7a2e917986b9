package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/farmrunner/pkg/automation"
	"github.com/entrhq/farmrunner/pkg/logging"
)

func newRunOnceCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single cycle and exit",
		Long: `Run one login and farm-list cycle without the scheduler or the control page.
Useful for checking credentials and selectors, e.g. with --headless=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)
			defer logging.Close()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.browser.Shutdown(); err != nil {
					a.logger.Errorf("Failed to stop browser driver: %v", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			started := time.Now()
			result, err := a.cycle.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "outcome=%s login_confirmed=%t duration=%s\n",
				result.Outcome, result.LoginConfirmed, time.Since(started).Round(time.Millisecond))

			if result.Outcome == automation.OutcomeMissingCredentials {
				return automation.ErrMissingCredentials
			}
			return nil
		},
	}
}
