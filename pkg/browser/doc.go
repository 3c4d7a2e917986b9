// Package browser provides web browser automation through Playwright.
//
// The package is built around two concepts:
//
//  1. Session: a Playwright browser instance with its isolated context and page
//  2. Manager: owns the Playwright driver and tracks every open session
//
// # Session Lifecycle
//
// The automation loop opens one fresh session per cycle and always closes it
// before the cycle ends:
//
//  1. Open: Manager.StartSession launches Chromium, a new context and a page
//  2. Use: Navigate, Fill, ClickAndWaitForNavigation, Evaluate
//  3. Close: Session.Close releases the page, context and browser
//
// The Playwright driver itself is started lazily on the first session and
// lives until Manager.Shutdown.
//
// # Example Usage
//
//	manager := browser.NewManager(browser.ManagerOptions{InstallBrowsers: true})
//	defer manager.Shutdown()
//
//	session, err := manager.StartSession(browser.SessionOptions{Headless: true})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	err = session.Navigate("https://example.com", browser.NavigateOptions{
//	    WaitUntil: browser.WaitUntilDOMContentLoaded,
//	})
package browser
