// Package memory provides an in-memory RunStore for the service mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	"github.com/JakeFAU/douyin-harvester/internal/store"
)

// RunStore keeps runs in a map guarded by a mutex.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]store.Run)}
}

// Create stores a new run.
func (s *RunStore) Create(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return store.ErrExists
	}
	if run.State == "" {
		run.State = store.StateQueued
	}
	s.runs[run.ID] = run
	return nil
}

// MarkRunning records that a run has been picked up.
func (s *RunStore) MarkRunning(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.State = store.StateRunning
	run.Started = pointerTime(at)
	s.runs[id] = run
	return nil
}

// Complete stores the final summary of a run.
func (s *RunStore) Complete(_ context.Context, id string, summary harvest.Summary, runErr error, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.State = store.StateOf(summary, runErr)
	run.Finished = pointerTime(at)
	run.Summary = &summary
	if runErr != nil {
		run.Error = runErr.Error()
	}
	s.runs[id] = run
	return nil
}

// Get fetches a run by id.
func (s *RunStore) Get(_ context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// List returns every run, most recently submitted first.
func (s *RunStore) List(_ context.Context) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Submitted.Equal(out[j].Submitted) {
			return out[i].ID > out[j].ID
		}
		return out[i].Submitted.After(out[j].Submitted)
	})
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
