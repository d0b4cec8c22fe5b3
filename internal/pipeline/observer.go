package pipeline

import (
	"context"
	"time"

	"github.com/laue-dials/laue-go/internal/domain"
)

// StageResult is what the runner reports after each stage.
type StageResult struct {
	Stage      domain.Stage
	Outcome    domain.StageOutcome
	Output     domain.Dataset
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Observer receives run and stage notifications. Returned errors are logged
// and never change the outcome of the run.
type Observer interface {
	BeforeRun(ctx context.Context, plan domain.ExecutionPlan) error
	BeforeStage(ctx context.Context, runID string, stage domain.Stage) error
	AfterStage(ctx context.Context, runID string, result StageResult) error
	AfterRun(ctx context.Context, plan domain.ExecutionPlan, state domain.RunState) error
}
