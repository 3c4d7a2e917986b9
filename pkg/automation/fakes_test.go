package automation

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entrhq/farmrunner/pkg/browser"
	"github.com/entrhq/farmrunner/pkg/credentials"
	"github.com/entrhq/farmrunner/pkg/logging"
)

func testLogger() *logging.Logger {
	_ = logging.Setup(logging.Options{Console: &bytes.Buffer{}, NoColor: true, Level: "debug"})
	return logging.NewLogger("test")
}

// memStore is an in-memory credentials.Store.
type memStore struct {
	mu      sync.Mutex
	creds   *credentials.Credentials
	saveErr error
	saves   int
}

func newMemStore(username, password string) *memStore {
	s := &memStore{}
	if username != "" || password != "" {
		s.creds = &credentials.Credentials{Username: username, Password: password}
	}
	return s
}

func (s *memStore) Load() (credentials.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil || !s.creds.Valid() {
		return credentials.Credentials{}, credentials.ErrNotFound
	}
	return *s.creds, nil
}

func (s *memStore) Save(c credentials.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.creds = &c
	return nil
}

// manualTimer is a pending task of manualScheduler.
type manualTimer struct {
	delay   time.Duration
	task    func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler records scheduled tasks; tests fire them explicitly on the
// test goroutine.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) Schedule(delay time.Duration, task func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: delay, task: task}
	s.timers = append(s.timers, t)
	return t
}

// pending returns the timers that were neither stopped nor fired.
func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireNext runs the oldest pending timer and reports whether one existed.
func (s *manualScheduler) fireNext() bool {
	p := s.pending()
	if len(p) == 0 {
		return false
	}
	t := p[0]
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.task()
	return true
}

// fakeRunner counts cycles and returns a canned result.
type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	result CycleResult
	err    error
	panic  any
	onRun  func()
}

func (r *fakeRunner) Run(ctx context.Context) (CycleResult, error) {
	r.mu.Lock()
	r.calls++
	onRun := r.onRun
	r.mu.Unlock()

	if onRun != nil {
		onRun()
	}
	if r.panic != nil {
		panic(r.panic)
	}
	return r.result, r.err
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// recordingObserver captures observer callbacks.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	running  []bool
	nextRuns []time.Time
}

func (o *recordingObserver) CycleFinished(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) RunningChanged(running bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = append(o.running, running)
}

func (o *recordingObserver) NextRunScheduled(at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextRuns = append(o.nextRuns, at)
}

// fakePage scripts browser behaviour for Cycle tests.
type fakePage struct {
	navigated   []string
	filled      map[string]string
	clicked     []string
	url         string
	landingURL  string
	navErr      map[string]error
	fillErr     error
	clickErr    error
	evalResult  any
	evalErr     error
	evalArg     any
	closed      int
	closeErr    error
}

func newFakePage() *fakePage {
	return &fakePage{
		filled:     map[string]string{},
		navErr:     map[string]error{},
		landingURL: "https://game.example.com/dorf1.php",
		evalResult: "text",
	}
}

func (p *fakePage) Navigate(url string, _ browser.NavigateOptions) error {
	p.navigated = append(p.navigated, url)
	if err := p.navErr[url]; err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *fakePage) Fill(opts browser.FillOptions) error {
	if p.fillErr != nil {
		return p.fillErr
	}
	p.filled[opts.Selector] = opts.Value
	return nil
}

func (p *fakePage) ClickAndWaitForNavigation(click browser.ClickOptions, _ browser.NavigateOptions) error {
	p.clicked = append(p.clicked, click.Selector)
	p.url = p.landingURL
	return p.clickErr
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Evaluate(_ string, arg any) (any, error) {
	p.evalArg = arg
	return p.evalResult, p.evalErr
}

func (p *fakePage) Close() error {
	p.closed++
	return p.closeErr
}

// fakeBrowser hands out a single fakePage.
type fakeBrowser struct {
	page    *fakePage
	openErr error
	opens   int
}

func (b *fakeBrowser) OpenPage(ctx context.Context) (Page, error) {
	b.opens++
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.page, nil
}

var errBoom = errors.New("boom")
