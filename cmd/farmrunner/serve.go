package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/farmrunner/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the control page (default)",
		Long:  `Serve the control page and HTTP API. Automation starts stopped.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *cliFlags) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Infof("Automation is initially STOPPED; use the control page to start it")
	a.logger.Infof("Credentials file: %s", a.store.Path())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Warnf("Graceful shutdown initiated")
	case err = <-serveErr:
		if err != nil {
			a.logger.Errorf("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := a.shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Errorf("Shutdown: %v", shutdownErr)
	}
	a.logger.Infof("Goodbye")
	return err
}
