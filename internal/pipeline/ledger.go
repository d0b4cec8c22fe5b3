package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/execution/plan"
	"github.com/laue-dials/laue-go/internal/repo"
)

// Ledger records runs and stage attempts in a repository.
type Ledger struct {
	runs   repo.RunRepository
	stages repo.StageExecutionRepository
	now    func() time.Time
	states map[string]domain.RunState
}

var _ Observer = (*Ledger)(nil)

func NewLedger(runs repo.RunRepository, stages repo.StageExecutionRepository) (*Ledger, error) {
	if runs == nil || stages == nil {
		return nil, errors.New("run and stage repositories are required")
	}
	return &Ledger{runs: runs, stages: stages, now: time.Now, states: map[string]domain.RunState{}}, nil
}

func (l *Ledger) BeforeRun(ctx context.Context, p domain.ExecutionPlan) error {
	raw, err := plan.MarshalExecutionPlan(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := l.runs.CreateRun(ctx, domain.Run{
		ID:        p.RunID,
		State:     domain.RunStateRunning,
		Images:    p.Images,
		Through:   p.Last(),
		StartedAt: l.now(),
		Plan:      raw,
	}); err != nil {
		return err
	}
	l.states[p.RunID] = domain.RunStateRunning
	return nil
}

func (l *Ledger) BeforeStage(context.Context, string, domain.Stage) error {
	return nil
}

func (l *Ledger) AfterStage(ctx context.Context, runID string, result StageResult) error {
	_, _, err := l.stages.InsertAttempt(ctx, toRecord(runID, result))
	return err
}

func (l *Ledger) AfterRun(ctx context.Context, p domain.ExecutionPlan, state domain.RunState) error {
	current, ok := l.states[p.RunID]
	if !ok {
		return fmt.Errorf("run %s was not recorded", p.RunID)
	}
	if !domain.CanTransitionRunState(current, state) {
		return fmt.Errorf("run %s: invalid transition %s -> %s", p.RunID, current, state)
	}
	delete(l.states, p.RunID)
	var endedAt *time.Time
	if state == domain.RunStateSucceeded || state == domain.RunStateFailed {
		t := l.now()
		endedAt = &t
	}
	return l.runs.UpdateRunState(ctx, p.RunID, state, endedAt)
}
