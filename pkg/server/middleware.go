package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/entrhq/farmrunner/pkg/logging"
	"github.com/entrhq/farmrunner/pkg/metrics"
)

// requestLogger writes one zerolog event per request. Status polling is
// logged at debug level to keep the console readable.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	zl := logger.Zerolog()
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := zl.Info()
			if v.URI == "/api/status" || v.URI == "/metrics" {
				event = zl.Debug()
			}
			if v.Error != nil {
				event = zl.Warn().Err(v.Error)
			}
			event.
				Str("type", "http").
				Str("remote_ip", c.RealIP()).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func secureHeaders() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'",
	})
}

// rateLimiter limits control API calls per client IP.
func rateLimiter(perSecond float64, logger *logging.Logger) echo.MiddlewareFunc {
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(perSecond),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, Response{Message: "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.Warnf("Rate limit exceeded for %s on %s", identifier, c.Request().URL.Path)
			return c.JSON(http.StatusTooManyRequests, Response{Message: "Too many requests"})
		},
	})
}

// countRequests feeds the API request counter. Unmatched routes are folded
// into one label value.
func countRequests(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			code := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					code = he.Code
				} else {
					code = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" || code == http.StatusNotFound {
				route = "unmatched"
			}
			m.ObserveRequest(route, code)
			return err
		}
	}
}
