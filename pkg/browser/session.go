package browser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session represents an open browser session with its associated resources.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Page is the current active page
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// CurrentURL is the URL of the current page
	CurrentURL string

	manager     *Manager
	releaseOnce sync.Once
	releaseErr  error
}

// Navigate navigates the session's page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	_, err := s.Page.Goto(url, playwrightOpts)
	s.CurrentURL = s.Page.URL()
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(opts FillOptions) error {
	playwrightOpts := playwright.PageFillOptions{}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if err := s.Page.Fill(opts.Selector, opts.Value, playwrightOpts); err != nil {
		return fmt.Errorf("fill %s failed: %w", opts.Selector, err)
	}
	return nil
}

// ClickAndWaitForNavigation clicks an element and waits for the navigation it
// triggers to reach the requested load state. A timeout while waiting is
// returned as an error matching IsTimeout; the click itself may still have
// taken effect.
func (s *Session) ClickAndWaitForNavigation(click ClickOptions, nav NavigateOptions) error {
	expectOpts := playwright.PageExpectNavigationOptions{}

	if nav.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(nav.WaitUntil)
		expectOpts.WaitUntil = &waitUntil
	}
	if nav.Timeout > 0 {
		expectOpts.Timeout = &nav.Timeout
	}

	clickOpts := playwright.PageClickOptions{}
	if click.Timeout > 0 {
		clickOpts.Timeout = &click.Timeout
	}

	_, err := s.Page.ExpectNavigation(func() error {
		return s.Page.Click(click.Selector, clickOpts)
	}, expectOpts)
	s.CurrentURL = s.Page.URL()
	if err != nil {
		return fmt.Errorf("click %s and wait for navigation: %w", click.Selector, err)
	}
	return nil
}

// URL returns the address of the current page.
func (s *Session) URL() string {
	s.CurrentURL = s.Page.URL()
	return s.CurrentURL
}

// Evaluate runs a JavaScript expression or function in the page and returns
// its result. When arg is non-nil it is passed to the function.
func (s *Session) Evaluate(expression string, arg any) (any, error) {
	var (
		result any
		err    error
	)
	if arg == nil {
		result, err = s.Page.Evaluate(expression)
	} else {
		result, err = s.Page.Evaluate(expression, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("JavaScript execution failed: %w", err)
	}
	return result, nil
}

// Close releases the page, context and browser and removes the session from
// its manager. Safe to call multiple times.
func (s *Session) Close() error {
	if s.manager != nil {
		if err := s.manager.CloseSession(s.Name); err == nil {
			return nil
		}
	}
	return s.release()
}

// release closes the Playwright resources exactly once. Every resource is
// closed even if an earlier one fails.
func (s *Session) release() error {
	s.releaseOnce.Do(func() {
		var errs []error
		if s.Page != nil {
			if err := s.Page.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.releaseErr = errors.Join(errs...)
	})
	return s.releaseErr
}
