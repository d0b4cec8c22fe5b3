// Package pipeline runs the monochromatic stages in order, handing each
// stage's output to the next and reporting progress to observers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/execution/state"
	"github.com/laue-dials/laue-go/internal/monochromatic"
	"github.com/laue-dials/laue-go/internal/phil"
	"github.com/laue-dials/laue-go/internal/repo"
)

// Result collects the handles produced by every completed stage.
type Result struct {
	RunID    string
	State    domain.RunState
	Imported domain.ExperimentList
	Strong   domain.ReflectionTable
	Indexed  domain.Dataset
	Refined  domain.Dataset
	Stills   domain.Dataset
	Stages   []StageResult
}

// Final returns the output of the last completed stage.
func (r Result) Final() domain.Dataset {
	if len(r.Stages) == 0 {
		return domain.Dataset{}
	}
	return r.Stages[len(r.Stages)-1].Output
}

// observerTimeout bounds each hook call once the run context is detached.
const observerTimeout = 10 * time.Second

type Runner struct {
	processor *monochromatic.Processor
	observers []Observer
	logger    *slog.Logger
}

func NewRunner(processor *monochromatic.Processor, logger *slog.Logger, observers ...Observer) (*Runner, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{processor: processor, observers: observers, logger: logger}, nil
}

// Run executes the plan one stage at a time and stops at the first failure.
// The stage error is returned unchanged.
func (r *Runner) Run(ctx context.Context, plan domain.ExecutionPlan, scopes Scopes) (Result, error) {
	logger := r.logger.With("run_id", plan.RunID)
	result := Result{RunID: plan.RunID, State: domain.RunStateCreated}

	r.notify(ctx, func(hookCtx context.Context, o Observer) {
		if err := o.BeforeRun(hookCtx, plan); err != nil {
			logger.Warn("observer failed", "hook", "before_run", "error", err)
		}
	})

	var current domain.Dataset
	var runErr error
	for _, step := range plan.Steps {
		stage := step.Stage
		r.notify(ctx, func(hookCtx context.Context, o Observer) {
			if err := o.BeforeStage(hookCtx, plan.RunID, stage); err != nil {
				logger.Warn("observer failed", "hook", "before_stage", "stage", string(stage), "error", err)
			}
		})

		logger.Info("stage started", "stage", string(stage))
		started := time.Now()
		out, err := r.runStage(ctx, stage, scopes.For(stage), plan.Images, current)
		sr := StageResult{
			Stage:      stage,
			Outcome:    domain.StageOutcomeSucceeded,
			Output:     out,
			Err:        err,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if err != nil {
			sr.Outcome = domain.StageOutcomeFailed
			logger.Error("stage failed", "stage", string(stage), "duration", sr.FinishedAt.Sub(started), "error", err)
		} else {
			logger.Info("stage finished",
				"stage", string(stage),
				"duration", sr.FinishedAt.Sub(started),
				"experiments", out.Experiments.Path,
				"reflections", out.Reflections.Path,
			)
		}
		result.Stages = append(result.Stages, sr)

		r.notify(ctx, func(hookCtx context.Context, o Observer) {
			if err := o.AfterStage(hookCtx, plan.RunID, sr); err != nil {
				logger.Warn("observer failed", "hook", "after_stage", "stage", string(stage), "error", err)
			}
		})
		if err != nil {
			runErr = err
			break
		}
		current = out
		result.record(stage, out)
	}

	result.State = state.DeriveRunState(&plan, stageRecords(plan.RunID, result.Stages))
	r.notify(ctx, func(hookCtx context.Context, o Observer) {
		if err := o.AfterRun(hookCtx, plan, result.State); err != nil {
			logger.Warn("observer failed", "hook", "after_run", "error", err)
		}
	})
	logger.Info("run finished", "state", string(result.State))
	return result, runErr
}

// notify calls every observer with a context that survives cancellation of
// the run, so a canceled or timed-out run still records its last stage and
// final state.
func (r *Runner) notify(ctx context.Context, call func(context.Context, Observer)) {
	for _, o := range r.observers {
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observerTimeout)
		call(hookCtx, o)
		cancel()
	}
}

func (r *Runner) runStage(ctx context.Context, stage domain.Stage, scope *phil.Scope, images []string, in domain.Dataset) (domain.Dataset, error) {
	p := r.processor
	switch stage {
	case domain.StageImport:
		expts, err := p.ImportImages(ctx, scope, images...)
		return domain.Dataset{Experiments: expts}, err
	case domain.StageFindSpots:
		refls, err := p.FindSpots(ctx, scope, in.Experiments)
		return domain.Dataset{Experiments: in.Experiments, Reflections: refls}, err
	case domain.StageIndex:
		expts, refls, err := p.InitialIndex(ctx, scope, in.Experiments, in.Reflections)
		return domain.Dataset{Experiments: expts, Reflections: refls}, err
	case domain.StageRefine:
		expts, refls, err := p.ScanVaryingRefine(ctx, scope, in.Experiments, in.Reflections)
		return domain.Dataset{Experiments: expts, Reflections: refls}, err
	case domain.StageSplit:
		expts, refls, err := p.SplitSequence(ctx, scope, in.Experiments, in.Reflections)
		return domain.Dataset{Experiments: expts, Reflections: refls}, err
	default:
		return domain.Dataset{}, fmt.Errorf("unknown stage %q", stage)
	}
}

func (r *Result) record(stage domain.Stage, out domain.Dataset) {
	switch stage {
	case domain.StageImport:
		r.Imported = out.Experiments
	case domain.StageFindSpots:
		r.Strong = out.Reflections
	case domain.StageIndex:
		r.Indexed = out
	case domain.StageRefine:
		r.Refined = out
	case domain.StageSplit:
		r.Stills = out
	}
}

// stageRecords converts in-memory results to the attempt records state
// derivation works on. Stages are never retried, so every attempt is 1.
func stageRecords(runID string, results []StageResult) []repo.StageExecutionRecord {
	records := make([]repo.StageExecutionRecord, 0, len(results))
	for _, sr := range results {
		records = append(records, toRecord(runID, sr))
	}
	return records
}

func toRecord(runID string, sr StageResult) repo.StageExecutionRecord {
	finished := sr.FinishedAt
	record := repo.StageExecutionRecord{
		RunID:       runID,
		Stage:       sr.Stage,
		Attempt:     1,
		Status:      string(sr.Outcome),
		StartedAt:   sr.StartedAt,
		FinishedAt:  &finished,
		Experiments: sr.Output.Experiments.Path,
		Reflections: sr.Output.Reflections.Path,
	}
	if sr.Err != nil {
		record.ErrorMessage = sr.Err.Error()
	}
	return record
}
