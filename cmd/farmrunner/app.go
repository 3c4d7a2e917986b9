package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/farmrunner/pkg/automation"
	"github.com/entrhq/farmrunner/pkg/browser"
	"github.com/entrhq/farmrunner/pkg/config"
	"github.com/entrhq/farmrunner/pkg/credentials"
	"github.com/entrhq/farmrunner/pkg/logging"
	"github.com/entrhq/farmrunner/pkg/metrics"
	"github.com/entrhq/farmrunner/pkg/server"
)

// app is the wired process: one loop, one browser driver, one HTTP server.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   *credentials.FileStore
	browser *browser.Manager
	cycle   *automation.Cycle
	loop    *automation.Loop
	metrics *metrics.Metrics
	server  *server.Server
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.NewLogger("farmrunner")

	store, err := credentials.NewFileStore(cfg.Credentials.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials store: %w", err)
	}

	manager := browser.NewManager(browser.ManagerOptions{
		InstallBrowsers: cfg.Browser.InstallBrowsers,
		MaxSessions:     1,
	})

	cycle := automation.NewCycle(cfg,
		automation.NewManagedBrowser(manager, cfg.Browser),
		store,
		logging.NewLogger("cycle"),
	)

	m := metrics.New(manager.ActiveSessions)

	loop := automation.NewLoop(cycle, store,
		automation.WithDelay(automation.RandomDelay(cfg.Schedule.MinDelay, cfg.Schedule.MaxDelay)),
		automation.WithObserver(m),
		automation.WithLogger(logging.NewLogger("automation")),
	)

	srv := server.New(cfg.Server, loop, m, logging.NewLogger("server"))

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		browser: manager,
		cycle:   cycle,
		loop:    loop,
		metrics: m,
		server:  srv,
	}, nil
}

// shutdown stops the HTTP server, then the loop (waiting for an in-flight
// cycle), then the browser driver.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.loop.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("automation loop: %w", err))
	}
	if err := a.browser.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("browser: %w", err))
	}

	return errors.Join(errs...)
}
