package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned by Start when no usable credentials
	// are stored.
	ErrMissingCredentials = errors.New("credentials not configured")

	// ErrAlreadyRunning is returned by Start while the loop is running.
	ErrAlreadyRunning = errors.New("automation is already running")

	// ErrAlreadyStopped is returned by Stop while the loop is stopped.
	ErrAlreadyStopped = errors.New("automation is already stopped")

	// ErrInvalidInput is returned by SetCredentials when the username or
	// password is empty.
	ErrInvalidInput = errors.New("username and password are required")

	// ErrShuttingDown is returned by Start once Shutdown has begun.
	ErrShuttingDown = errors.New("automation is shutting down")
)

// CycleError describes the step at which a cycle failed. Cycle errors are
// logged and absorbed by the loop; they never stop scheduling.
type CycleError struct {
	Step string
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle failed at %s: %v", e.Step, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

func stepError(step string, err error) error {
	return &CycleError{Step: step, Err: err}
}
