package browser

import (
	"errors"
	"time"

	"github.com/playwright-community/playwright-go"
)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// UserAgent overrides the browser's user agent when non-empty
	UserAgent string

	// Args are extra Chromium command-line flags
	Args []string

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Load states accepted by NavigateOptions.WaitUntil.
const (
	WaitUntilLoad             = "load"
	WaitUntilDOMContentLoaded = "domcontentloaded"
	WaitUntilNetworkIdle      = "networkidle"
)

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// ClickOptions configures element clicking behavior.
type ClickOptions struct {
	// Selector identifies the element to click
	Selector string

	// Timeout in milliseconds
	Timeout float64
}

// FillOptions configures form input filling.
type FillOptions struct {
	// Selector identifies the input element
	Selector string

	// Value is the text to fill
	Value string

	// Timeout in milliseconds
	Timeout float64
}

// Default values for various operations
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	DefaultMaxSessions    = 2
)

// Milliseconds converts a duration into the float milliseconds Playwright
// expects.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// IsTimeout reports whether err is a Playwright timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}
