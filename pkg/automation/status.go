package automation

import "time"

// Status is a read-only snapshot of the loop. It never carries the password.
type Status struct {
	IsRunning bool `json:"isRunning"`

	// NextRunTime is set once a follow-up cycle has been scheduled and cleared
	// by Stop.
	NextRunTime *time.Time `json:"nextRunTime"`

	// TimeRemaining is max(0, NextRunTime-now) in milliseconds.
	TimeRemaining *int64 `json:"timeRemaining"`

	HasCredentials bool    `json:"hasCredentials"`
	Username       *string `json:"username"`

	CycleInProgress bool       `json:"cycleInProgress"`
	LastRun         *RunRecord `json:"lastRun"`
}

// RunRecord describes the most recently finished cycle.
type RunRecord struct {
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	Outcome        Outcome   `json:"outcome"`
	LoginConfirmed bool      `json:"loginConfirmed"`
	Error          string    `json:"error,omitempty"`
}

func remaining(next, now time.Time) int64 {
	d := next.Sub(now).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
