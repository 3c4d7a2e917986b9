package automation

import (
	"math/rand/v2"
	"time"
)

// Timer is a cancellation handle for a scheduled task.
type Timer interface {
	// Stop prevents the task from running if it has not started yet. It
	// reports whether the call stopped the task.
	Stop() bool
}

// Scheduler runs a task once after a delay. The task must not run before
// Schedule returns.
type Scheduler interface {
	Schedule(delay time.Duration, task func()) Timer
}

// TimeScheduler schedules tasks on the runtime timer.
type TimeScheduler struct{}

// Schedule runs task on its own goroutine after delay.
func (TimeScheduler) Schedule(delay time.Duration, task func()) Timer {
	return time.AfterFunc(delay, task)
}

// DelayFunc picks the wait before the next cycle.
type DelayFunc func() time.Duration

// RandomDelay returns a DelayFunc drawing a whole number of milliseconds
// uniformly from the closed interval [min, max]. Jitter keeps the cycle from
// having a fixed period.
func RandomDelay(min, max time.Duration) DelayFunc {
	minMs := min.Milliseconds()
	maxMs := max.Milliseconds()
	if maxMs < minMs {
		maxMs = minMs
	}
	span := maxMs - minMs + 1

	return func() time.Duration {
		return time.Duration(minMs+rand.Int64N(span)) * time.Millisecond
	}
}
