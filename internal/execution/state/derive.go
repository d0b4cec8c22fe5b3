package state

import (
	"strings"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/repo"
)

// DeriveRunState computes the run state from the plan and recorded stage attempts.
func DeriveRunState(plan *domain.ExecutionPlan, executions []repo.StageExecutionRecord) domain.RunState {
	if plan == nil || len(plan.Steps) == 0 {
		return domain.RunStateCreated
	}
	if len(executions) == 0 {
		return domain.RunStateCreated
	}

	byStage := groupByStage(executions)
	incomplete := false
	for _, step := range plan.Steps {
		attempts, outcome := DeriveStageOutcome(byStage[step.Stage])
		if attempts == 0 || outcome == "" {
			incomplete = true
			continue
		}
		if outcome == domain.StageOutcomeFailed {
			return domain.RunStateFailed
		}
	}
	if incomplete {
		return domain.RunStateRunning
	}
	return domain.RunStateSucceeded
}

// DeriveStageOutcome returns the attempt count and the outcome of the latest
// attempt (empty if that attempt is not terminal).
func DeriveStageOutcome(executions []repo.StageExecutionRecord) (int, domain.StageOutcome) {
	if len(executions) == 0 {
		return 0, ""
	}
	maxAttempt := 0
	finalStatus := ""
	for _, record := range executions {
		if record.Attempt > maxAttempt {
			maxAttempt = record.Attempt
			finalStatus = record.Status
		}
	}
	return maxAttempt, normalizeOutcome(finalStatus)
}

func normalizeOutcome(status string) domain.StageOutcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(domain.StageOutcomeSucceeded):
		return domain.StageOutcomeSucceeded
	case string(domain.StageOutcomeFailed):
		return domain.StageOutcomeFailed
	default:
		return ""
	}
}

func groupByStage(executions []repo.StageExecutionRecord) map[domain.Stage][]repo.StageExecutionRecord {
	out := make(map[domain.Stage][]repo.StageExecutionRecord)
	for _, record := range executions {
		out[record.Stage] = append(out[record.Stage], record)
	}
	return out
}
