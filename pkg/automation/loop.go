package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/farmrunner/pkg/credentials"
	"github.com/entrhq/farmrunner/pkg/logging"
)

// CycleRunner performs one cycle.
type CycleRunner interface {
	Run(ctx context.Context) (CycleResult, error)
}

// Observer is notified about loop activity. Implementations must be safe for
// concurrent use.
type Observer interface {
	CycleFinished(outcome Outcome, duration time.Duration)
	RunningChanged(running bool)

	// NextRunScheduled receives the zero time when the schedule is cleared.
	NextRunScheduled(at time.Time)
}

type noopObserver struct{}

func (noopObserver) CycleFinished(Outcome, time.Duration) {}
func (noopObserver) RunningChanged(bool)                  {}
func (noopObserver) NextRunScheduled(time.Time)           {}

// runState is everything Start, Stop and the re-arm step mutate.
type runState struct {
	running bool

	// epoch increments on every Start so that a cycle begun under an earlier
	// run cannot re-arm after a Stop/Start pair.
	epoch uint64

	nextRun time.Time
	pending Timer

	cycleInProgress bool
	lastRun         *RunRecord
	closed          bool
}

// Loop runs cycles on a randomized interval while started.
//
// At most one cycle executes at a time and at most one follow-up cycle is
// pending. Stop prevents future cycles but does not interrupt one in flight.
type Loop struct {
	cycle    CycleRunner
	store    credentials.Store
	sched    Scheduler
	delay    DelayFunc
	now      func() time.Time
	logger   *logging.Logger
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state runState

	cycleMu sync.Mutex
	wg      sync.WaitGroup
}

// Option configures a Loop.
type Option func(*Loop)

// WithScheduler replaces the timer-based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(l *Loop) { l.sched = s }
}

// WithDelay replaces the delay between cycles.
func WithDelay(d DelayFunc) Option {
	return func(l *Loop) { l.delay = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithObserver registers an observer for cycle and schedule events.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates a stopped loop. Without options it schedules with
// time.AfterFunc and waits 4 to 6 minutes between cycles.
func NewLoop(cycle CycleRunner, store credentials.Store, opts ...Option) *Loop {
	ctx, cancel := context.WithCancel(context.Background())

	l := &Loop{
		cycle:    cycle,
		store:    store,
		sched:    TimeScheduler{},
		delay:    RandomDelay(4*time.Minute, 6*time.Minute),
		now:      time.Now,
		observer: noopObserver{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.NewLogger("automation")
	}
	return l
}

// Start begins the loop and triggers one cycle immediately without waiting
// for it.
func (l *Loop) Start() (Status, error) {
	if _, ok := l.loadCredentials(); !ok {
		return l.Status(), ErrMissingCredentials
	}

	l.mu.Lock()
	if l.state.closed {
		l.mu.Unlock()
		return l.Status(), ErrShuttingDown
	}
	if l.state.running {
		l.mu.Unlock()
		return l.Status(), ErrAlreadyRunning
	}

	l.state.running = true
	l.state.epoch++
	l.state.nextRun = time.Time{}
	l.armLocked(0, l.state.epoch)
	l.mu.Unlock()

	l.logger.Infof("Automation started by user")
	l.observer.RunningChanged(true)
	return l.Status(), nil
}

// Stop halts scheduling. A cycle already in flight finishes but is not
// followed by another one.
func (l *Loop) Stop() (Status, error) {
	l.mu.Lock()
	if !l.state.running {
		l.mu.Unlock()
		return l.Status(), ErrAlreadyStopped
	}

	l.state.running = false
	l.clearScheduleLocked()
	l.mu.Unlock()

	l.logger.Infof("Automation stopped by user")
	l.observer.RunningChanged(false)
	l.observer.NextRunScheduled(time.Time{})
	return l.Status(), nil
}

// Status returns a snapshot of the loop. It never fails.
func (l *Loop) Status() Status {
	l.mu.Lock()
	st := Status{
		IsRunning:       l.state.running,
		CycleInProgress: l.state.cycleInProgress,
	}
	if !l.state.nextRun.IsZero() {
		next := l.state.nextRun
		left := remaining(next, l.now())
		st.NextRunTime = &next
		st.TimeRemaining = &left
	}
	if l.state.lastRun != nil {
		last := *l.state.lastRun
		st.LastRun = &last
	}
	l.mu.Unlock()

	if creds, ok := l.loadCredentials(); ok {
		username := creds.Username
		st.HasCredentials = true
		st.Username = &username
	}
	return st
}

// SetCredentials validates and persists the account used by future cycles.
func (l *Loop) SetCredentials(username, password string) (Status, error) {
	if username == "" || password == "" {
		return Status{}, ErrInvalidInput
	}

	if err := l.store.Save(credentials.Credentials{Username: username, Password: password}); err != nil {
		l.logger.Errorf("Failed to save credentials: %v", err)
		return Status{}, fmt.Errorf("failed to save credentials: %w", err)
	}

	l.logger.Infof("Credentials updated for user %q", username)
	return l.Status(), nil
}

// Shutdown stops the loop for good, cancels an in-flight cycle between its
// steps and waits for it to finish or for ctx to expire.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	wasRunning := l.state.running
	l.state.closed = true
	l.state.running = false
	l.clearScheduleLocked()
	l.mu.Unlock()

	if wasRunning {
		l.observer.RunningChanged(false)
		l.observer.NextRunScheduled(time.Time{})
	}
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// armLocked schedules the next cycle, superseding any pending one.
func (l *Loop) armLocked(delay time.Duration, epoch uint64) {
	if l.state.pending != nil {
		l.state.pending.Stop()
	}
	l.state.pending = l.sched.Schedule(delay, func() { l.fire(epoch) })
}

func (l *Loop) clearScheduleLocked() {
	if l.state.pending != nil {
		l.state.pending.Stop()
		l.state.pending = nil
	}
	l.state.nextRun = time.Time{}
}

func (l *Loop) currentLocked(epoch uint64) bool {
	return l.state.running && !l.state.closed && l.state.epoch == epoch
}

// fire is the scheduled task: run one cycle, then re-arm if the run that
// scheduled it is still current.
func (l *Loop) fire(epoch uint64) {
	l.mu.Lock()
	if !l.currentLocked(epoch) {
		l.mu.Unlock()
		return
	}
	l.state.pending = nil
	l.wg.Add(1)
	l.mu.Unlock()
	defer l.wg.Done()

	l.cycleMu.Lock()
	l.mu.Lock()
	current := l.currentLocked(epoch)
	l.mu.Unlock()
	if current {
		l.runCycle()
	}
	l.cycleMu.Unlock()

	l.rearm(epoch)
}

// runCycle executes one cycle and records its outcome. Errors and panics are
// logged and absorbed.
func (l *Loop) runCycle() {
	started := l.now()

	l.mu.Lock()
	l.state.cycleInProgress = true
	l.mu.Unlock()

	l.logger.Infof("Starting farm-list automation cycle")

	result, err := l.safeRun()
	if err != nil {
		result.Outcome = OutcomeFailed
		l.logger.Errorf("Error during automation: %v", err)
	}

	finished := l.now()
	record := &RunRecord{
		StartedAt:      started,
		FinishedAt:     finished,
		Outcome:        result.Outcome,
		LoginConfirmed: result.LoginConfirmed,
	}
	if err != nil {
		record.Error = err.Error()
	}

	l.mu.Lock()
	l.state.cycleInProgress = false
	l.state.lastRun = record
	l.mu.Unlock()

	l.observer.CycleFinished(result.Outcome, finished.Sub(started))
	l.logger.Infof("Automation cycle finished (%s) in %s", result.Outcome, finished.Sub(started).Round(time.Millisecond))
}

func (l *Loop) safeRun() (result CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CycleError{Step: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	return l.cycle.Run(l.ctx)
}

// rearm schedules the next cycle after a random delay if still running.
func (l *Loop) rearm(epoch uint64) {
	l.mu.Lock()
	if !l.currentLocked(epoch) {
		l.mu.Unlock()
		l.logger.Infof("Automation is paused; not scheduling another run")
		return
	}

	delay := l.delay()
	next := l.now().Add(delay)
	l.state.nextRun = next
	l.armLocked(delay, epoch)
	l.mu.Unlock()

	l.observer.NextRunScheduled(next)
	l.logger.Infof("Next run scheduled for %s (waiting %d minutes, %d ms)",
		next.Format(time.RFC3339), int((delay + 30*time.Second) / time.Minute), delay.Milliseconds())
}

func (l *Loop) loadCredentials() (credentials.Credentials, bool) {
	creds, err := l.store.Load()
	if err != nil {
		if !errors.Is(err, credentials.ErrNotFound) {
			l.logger.Errorf("Failed to load credentials: %v", err)
		}
		return credentials.Credentials{}, false
	}
	return creds, true
}
