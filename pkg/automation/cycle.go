package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/farmrunner/pkg/browser"
	"github.com/entrhq/farmrunner/pkg/config"
	"github.com/entrhq/farmrunner/pkg/credentials"
	"github.com/entrhq/farmrunner/pkg/logging"
)

// Page is the slice of a browser session the cycle drives.
type Page interface {
	Navigate(url string, opts browser.NavigateOptions) error
	Fill(opts browser.FillOptions) error
	ClickAndWaitForNavigation(click browser.ClickOptions, nav browser.NavigateOptions) error
	URL() string
	Evaluate(expression string, arg any) (any, error)
	Close() error
}

// Browser opens isolated pages, one per cycle.
type Browser interface {
	OpenPage(ctx context.Context) (Page, error)
}

// ManagedBrowser opens pages through a browser.Manager.
type ManagedBrowser struct {
	Manager *browser.Manager
	Options browser.SessionOptions
}

// NewManagedBrowser builds the session options for every cycle from cfg.
func NewManagedBrowser(manager *browser.Manager, cfg config.BrowserConfig) *ManagedBrowser {
	return &ManagedBrowser{
		Manager: manager,
		Options: browser.SessionOptions{
			Headless:  cfg.Headless,
			UserAgent: cfg.UserAgent,
			Args:      cfg.Args,
			Viewport: &browser.Viewport{
				Width:  cfg.ViewportWidth,
				Height: cfg.ViewportHeight,
			},
			Timeout: browser.Milliseconds(cfg.NavigationTimeout),
		},
	}
}

// OpenPage starts a fresh browser session.
func (b *ManagedBrowser) OpenPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := b.Manager.StartSession(b.Options)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Login form selectors of the game's login page.
const (
	usernameSelector = `input[name="name"]`
	passwordSelector = `input[name="password"]`
	submitSelector   = `button[type="submit"], input[type="submit"]`
)

// clickButtonScript looks for the farm-list button by its text first and its
// class second, clicks the first match and returns the strategy that found it
// ("" when neither did).
const clickButtonScript = `({ text, selector }) => {
	if (text) {
		const byText = Array.from(document.querySelectorAll('div'))
			.find(el => el.textContent && el.textContent.includes(text));
		if (byText) {
			byText.click();
			return 'text';
		}
	}
	if (selector) {
		const bySelector = document.querySelector(selector);
		if (bySelector) {
			bySelector.click();
			return 'selector';
		}
	}
	return '';
}`

// Outcome summarizes how a cycle ended.
type Outcome string

const (
	OutcomeClicked            Outcome = "clicked"
	OutcomeButtonNotFound     Outcome = "button_not_found"
	OutcomeMissingCredentials Outcome = "missing_credentials"
	OutcomeFailed             Outcome = "failed"
)

// CycleResult reports what a cycle observed.
type CycleResult struct {
	Outcome Outcome

	// LoginConfirmed is true when the post-login address carried a known
	// marker.
	LoginConfirmed bool

	// Strategy names the lookup that found the button ("text" or "selector").
	Strategy string
}

// Cycle performs one login → farm list → click sequence.
type Cycle struct {
	Game    config.GameConfig
	Browser Browser
	Store   credentials.Store

	NavigationTimeout time.Duration
	SettleDelay       time.Duration

	Logger *logging.Logger
}

// NewCycle wires a cycle from configuration.
func NewCycle(cfg *config.Config, b Browser, store credentials.Store, logger *logging.Logger) *Cycle {
	return &Cycle{
		Game:              cfg.Game,
		Browser:           b,
		Store:             store,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		SettleDelay:       cfg.Browser.SettleDelay,
		Logger:            logger,
	}
}

// Run executes the cycle. Missing credentials yield OutcomeMissingCredentials
// with a nil error. Any browser failure is returned as a *CycleError; the
// browser session is closed in every case.
func (c *Cycle) Run(ctx context.Context) (result CycleResult, err error) {
	creds, err := c.Store.Load()
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			c.Logger.Errorf("Credentials not found; configure username and password in the control page")
			return CycleResult{Outcome: OutcomeMissingCredentials}, nil
		}
		return CycleResult{Outcome: OutcomeFailed}, stepError("load credentials", err)
	}

	c.Logger.Infof("Starting browser...")
	page, err := c.Browser.OpenPage(ctx)
	if err != nil {
		return CycleResult{Outcome: OutcomeFailed}, stepError("open browser", err)
	}
	defer func() {
		c.Logger.Infof("Closing browser...")
		if closeErr := page.Close(); closeErr != nil {
			c.Logger.Errorf("Failed to close browser: %v", closeErr)
		}
	}()

	result.LoginConfirmed, err = c.login(ctx, page, creds)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, err
	}

	if err := ctx.Err(); err != nil {
		result.Outcome = OutcomeFailed
		return result, stepError("farm list", err)
	}

	farmListURL := c.Game.FarmListURL()
	c.Logger.Infof("Navigating to farm list: %s", farmListURL)
	if err := page.Navigate(farmListURL, c.navigateOptions(browser.WaitUntilDOMContentLoaded)); err != nil {
		result.Outcome = OutcomeFailed
		return result, stepError("farm list", err)
	}

	c.Logger.Infof("Looking for the farm-list button...")
	strategy, err := c.clickButton(page)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, stepError("click button", err)
	}
	if strategy == "" {
		c.Logger.Warnf("Button %q not found or not visible", c.Game.ButtonText)
		result.Outcome = OutcomeButtonNotFound
		return result, nil
	}

	c.Logger.Infof("Farm-list button clicked (matched by %s)", strategy)
	result.Outcome = OutcomeClicked
	result.Strategy = strategy

	if err := sleep(ctx, c.SettleDelay); err != nil {
		c.Logger.Warnf("Settle wait interrupted: %v", err)
	}
	return result, nil
}

// login submits the login form. A navigation-wait timeout is tolerated
// because the login may still have succeeded.
func (c *Cycle) login(ctx context.Context, page Page, creds credentials.Credentials) (bool, error) {
	loginURL := c.Game.LoginURL()
	c.Logger.Infof("Navigating to login page: %s", loginURL)
	if err := page.Navigate(loginURL, c.navigateOptions(browser.WaitUntilDOMContentLoaded)); err != nil {
		return false, stepError("login page", err)
	}

	if err := page.Fill(browser.FillOptions{Selector: usernameSelector, Value: creds.Username}); err != nil {
		return false, stepError("enter username", err)
	}
	if err := page.Fill(browser.FillOptions{Selector: passwordSelector, Value: creds.Password}); err != nil {
		return false, stepError("enter password", err)
	}

	if err := ctx.Err(); err != nil {
		return false, stepError("submit login", err)
	}

	c.Logger.Infof("Submitting login form...")
	err := page.ClickAndWaitForNavigation(
		browser.ClickOptions{Selector: submitSelector},
		c.navigateOptions(browser.WaitUntilNetworkIdle),
	)
	if err != nil {
		if !browser.IsTimeout(err) {
			return false, stepError("submit login", err)
		}
		c.Logger.Warnf("Timed out waiting for post-login navigation, continuing")
	}

	current := page.URL()
	if c.loginConfirmed(current) {
		c.Logger.Infof("Login succeeded, landed on %s", current)
		return true, nil
	}

	// Unrecognized address: carry on and let the farm-list step show whether
	// the session is authenticated.
	c.Logger.Warnf("Login may have failed; current URL: %s", current)
	return false, nil
}

func (c *Cycle) loginConfirmed(url string) bool {
	for _, marker := range c.Game.LoginMarkers {
		if marker != "" && strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

func (c *Cycle) clickButton(page Page) (string, error) {
	result, err := page.Evaluate(clickButtonScript, map[string]any{
		"text":     c.Game.ButtonText,
		"selector": c.Game.ButtonSelector,
	})
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unexpected button lookup result %T", result)
	}
}

func (c *Cycle) navigateOptions(waitUntil string) browser.NavigateOptions {
	return browser.NavigateOptions{
		WaitUntil: waitUntil,
		Timeout:   browser.Milliseconds(c.NavigationTimeout),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
