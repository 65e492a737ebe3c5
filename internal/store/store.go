// Package store declares how queued harvest runs are tracked.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/douyin-harvester/internal/harvest"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// ErrExists is returned when a run id is reused.
var ErrExists = errors.New("run already exists")

// State is the lifecycle position of a run.
type State string

// Run states.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateEmpty     State = "empty"
)

// Terminal reports whether no further transition is expected.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateEmpty:
		return true
	default:
		return false
	}
}

// Run tracks one queued job through execution.
type Run struct {
	ID        string           `json:"run_id"`
	Job       harvest.Job      `json:"job"`
	State     State            `json:"state"`
	Submitted time.Time        `json:"submitted"`
	Started   *time.Time       `json:"started,omitempty"`
	Finished  *time.Time       `json:"finished,omitempty"`
	Summary   *harvest.Summary `json:"summary,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// RunStore persists run state.
type RunStore interface {
	Create(ctx context.Context, run Run) error
	MarkRunning(ctx context.Context, id string, at time.Time) error
	Complete(ctx context.Context, id string, summary harvest.Summary, runErr error, at time.Time) error
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context) ([]Run, error)
}

// StateOf maps a harvest summary status onto a run state.
func StateOf(summary harvest.Summary, runErr error) State {
	if runErr != nil {
		return StateFailed
	}
	switch summary.Status {
	case harvest.StatusEmpty:
		return StateEmpty
	case harvest.StatusFailed:
		return StateFailed
	default:
		return StateSucceeded
	}
}
