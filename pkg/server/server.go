// Package server exposes the automation loop over HTTP: a JSON control API,
// an embedded control page and the Prometheus endpoint.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/entrhq/farmrunner/pkg/automation"
	"github.com/entrhq/farmrunner/pkg/config"
	"github.com/entrhq/farmrunner/pkg/logging"
	"github.com/entrhq/farmrunner/pkg/metrics"
)

// Controller is the loop surface the API delegates to.
type Controller interface {
	Start() (automation.Status, error)
	Stop() (automation.Status, error)
	Status() automation.Status
	SetCredentials(username, password string) (automation.Status, error)
}

// Server is the HTTP control surface.
type Server struct {
	echo    *echo.Echo
	addr    string
	loop    Controller
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// New builds the router. m may be nil, which disables /metrics and request
// counting.
func New(cfg config.ServerConfig, loop Controller, m *metrics.Metrics, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger("server")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		addr:    cfg.Addr(),
		loop:    loop,
		metrics: m,
		logger:  logger,
	}

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	e.Use(secureHeaders())
	if m != nil {
		e.Use(countRequests(m))
	}

	e.GET("/", s.handleIndex)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	api := e.Group("/api")
	if cfg.RateLimit > 0 {
		api.Use(rateLimiter(cfg.RateLimit, logger))
	}
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	api.GET("/status", s.handleStatus)
	api.POST("/credentials", s.handleCredentials)

	return s
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe blocks until the server stops. A graceful Shutdown makes it
// return nil.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Control page listening on http://%s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
