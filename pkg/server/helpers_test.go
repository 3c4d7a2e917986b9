package server

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/farmrunner/pkg/automation"
	"github.com/entrhq/farmrunner/pkg/credentials"
)

type memStore struct {
	mu    sync.Mutex
	creds credentials.Credentials
}

func (s *memStore) Load() (credentials.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.creds.Valid() {
		return credentials.Credentials{}, credentials.ErrNotFound
	}
	return s.creds, nil
}

func (s *memStore) Save(c credentials.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
	return nil
}

type noopRunner struct{}

func (noopRunner) Run(context.Context) (automation.CycleResult, error) {
	return automation.CycleResult{Outcome: automation.OutcomeClicked}, nil
}

// idleScheduler accepts tasks and never runs them.
type idleScheduler struct{}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (idleScheduler) Schedule(time.Duration, func()) automation.Timer {
	return idleTimer{}
}
