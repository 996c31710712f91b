// Package jobs talks to the external image generation queue and models the
// lifecycle of one generation job.
package jobs

import (
	"errors"
	"fmt"
)

// State is the normalized state of a generation job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ErrStateRegression is returned when a job is asked to move backwards or
// to leave a terminal state.
var ErrStateRegression = errors.New("job state cannot move backwards")

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) rank() int {
	switch s {
	case StateQueued:
		return 0
	case StateRunning:
		return 1
	default:
		return 2
	}
}

// NormalizeStatus maps a provider status string to a State. Unknown values
// are treated as Running so that callers keep polling.
func NormalizeStatus(status string) State {
	switch status {
	case "IN_QUEUE":
		return StateQueued
	case "IN_PROGRESS":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "FAILED", "ERROR", "CANCELLED", "CANCELED":
		return StateFailed
	default:
		return StateRunning
	}
}

// Job is the in-memory view of one generation request. It is rebuilt from
// its ID whenever it is needed and never persisted.
type Job struct {
	ID     string
	State  State
	Result *string
}

// NewJob returns a freshly submitted job.
func NewJob(id string) *Job {
	return &Job{ID: id, State: StateQueued}
}

// Advance moves the job to next. Staying in the same state is allowed.
func (j *Job) Advance(next State) error {
	if next == j.State {
		return nil
	}
	if j.State.Terminal() || next.rank() < j.State.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrStateRegression, j.State, next)
	}
	j.State = next
	return nil
}

// Complete moves the job to Completed and records its result reference.
func (j *Job) Complete(result *string) error {
	if err := j.Advance(StateCompleted); err != nil {
		return err
	}
	j.Result = result
	return nil
}
