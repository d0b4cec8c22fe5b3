package domain

import (
	"errors"
	"strings"
	"time"
)

// RunState is the derived state of a pipeline run.
type RunState string

const (
	RunStateCreated   RunState = "created"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
)

// StageOutcome is the terminal status of one stage attempt.
type StageOutcome string

const (
	StageOutcomeSucceeded StageOutcome = "succeeded"
	StageOutcomeFailed    StageOutcome = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID        string
	State     RunState
	Images    []string
	Through   Stage
	StartedAt time.Time
	EndedAt   *time.Time
	Plan      []byte
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if NormalizeRunState(string(r.State)) == "" {
		return errors.New("run state is required")
	}
	if !r.Through.Valid() {
		return errors.New("run through stage is invalid")
	}
	return nil
}

// NormalizeRunState maps free-form status values to canonical run states.
func NormalizeRunState(value string) RunState {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RunStateCreated), "pending":
		return RunStateCreated
	case string(RunStateRunning):
		return RunStateRunning
	case string(RunStateSucceeded):
		return RunStateSucceeded
	case string(RunStateFailed):
		return RunStateFailed
	default:
		return ""
	}
}

// CanTransitionRunState enforces forward-only state progression.
func CanTransitionRunState(current, next RunState) bool {
	if current == "" || next == "" {
		return false
	}
	if current == next {
		return true
	}
	return runStateOrder(current) < runStateOrder(next)
}

func runStateOrder(state RunState) int {
	switch state {
	case RunStateCreated:
		return 1
	case RunStateRunning:
		return 2
	case RunStateSucceeded, RunStateFailed:
		return 3
	default:
		return 0
	}
}
