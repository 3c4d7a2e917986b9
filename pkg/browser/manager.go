package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// ErrManagerClosed is returned by StartSession after Shutdown.
var ErrManagerClosed = errors.New("browser manager is shut down")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// InstallBrowsers downloads the Playwright driver and Chromium before the
	// first launch. Disable when the image already ships them.
	InstallBrowsers bool

	// MaxSessions caps concurrently open sessions (0 means DefaultMaxSessions)
	MaxSessions int

	// Output receives the driver's install/run output. Nil discards it.
	Output io.Writer
}

// Manager owns the Playwright driver and tracks all open browser sessions.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	opts        ManagerOptions
	initialized bool
	closed      bool
}

// NewManager creates a new session manager. The Playwright driver is not
// started until Initialize or the first StartSession.
func NewManager(opts ManagerOptions) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// Initialize starts the Playwright driver, installing it first if
// configured. Calling it again after success is a no-op; after a failure it
// retries.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked()
}

func (m *Manager) initializeLocked() error {
	if m.closed {
		return ErrManagerClosed
	}
	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   m.opts.Output,
		Stderr:   m.opts.Output,
	}

	if m.opts.InstallBrowsers {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// StartSession launches a fresh browser with its own context and page.
// Each session gets a unique generated name.
func (m *Manager) StartSession(opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	// Check session limit
	if len(m.sessions) >= m.opts.MaxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.opts.MaxSessions)
	}

	if err := m.initializeLocked(); err != nil {
		return nil, err
	}

	// Set defaults
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	// Launch browser
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	browser, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(opts.Timeout)
	page.SetDefaultNavigationTimeout(opts.Timeout)

	session := &Session{
		Name:       uuid.New().String(),
		Browser:    browser,
		Context:    context,
		Page:       page,
		Headless:   opts.Headless,
		CreatedAt:  time.Now(),
		CurrentURL: "about:blank",
		manager:    m,
	}

	m.sessions[session.Name] = session
	return session, nil
}

// CloseSession closes and removes a browser session.
func (m *Manager) CloseSession(name string) error {
	m.mu.Lock()
	session, exists := m.sessions[name]
	if exists {
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("session %q not found", name)
	}
	return session.release()
}

// ActiveSessions returns the number of open sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Initialized reports whether the Playwright driver is running.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Shutdown closes all sessions and stops Playwright. The manager cannot be
// reused afterwards.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, session := range m.sessions {
		if err := session.release(); err != nil {
			errs = append(errs, err)
		}
		delete(m.sessions, name)
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		m.initialized = false
	}
	m.closed = true

	return errors.Join(errs...)
}
