package server

import (
	_ "embed"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/entrhq/farmrunner/pkg/automation"
)

//go:embed static/index.html
var indexHTML []byte

// Response is the body of every control API call except status.
type Response struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Status  *automation.Status `json:"status,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

func (s *Server) handleStart(c echo.Context) error {
	status, err := s.loop.Start()
	if err != nil {
		return c.JSON(statusCode(err), Response{Message: message(err), Status: &status})
	}
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Automation started",
		Status:  &status,
	})
}

func (s *Server) handleStop(c echo.Context) error {
	status, err := s.loop.Stop()
	if err != nil {
		return c.JSON(statusCode(err), Response{Message: message(err), Status: &status})
	}
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Automation stopped",
		Status:  &status,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.loop.Status())
}

func (s *Server) handleCredentials(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warnf("Rejected credentials request: %v", err)
		return c.JSON(http.StatusBadRequest, Response{Message: "Malformed request body"})
	}

	status, err := s.loop.SetCredentials(req.Username, req.Password)
	if err != nil {
		return c.JSON(statusCode(err), Response{Message: message(err)})
	}
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Credentials saved",
		Status:  &status,
	})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, automation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, automation.ErrAlreadyRunning), errors.Is(err, automation.ErrAlreadyStopped):
		return http.StatusConflict
	case errors.Is(err, automation.ErrMissingCredentials):
		return http.StatusPreconditionFailed
	case errors.Is(err, automation.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// message keeps internal details such as file paths out of API responses.
func message(err error) string {
	switch {
	case errors.Is(err, automation.ErrMissingCredentials):
		return "Credentials are not configured. Set a username and password first."
	case errors.Is(err, automation.ErrAlreadyRunning):
		return "Automation is already running"
	case errors.Is(err, automation.ErrAlreadyStopped):
		return "Automation is already stopped"
	case errors.Is(err, automation.ErrInvalidInput):
		return "Username and password are required"
	case errors.Is(err, automation.ErrShuttingDown):
		return "Server is shutting down"
	default:
		return "Failed to save credentials. Please try again."
	}
}
