package plan

import (
	"encoding/json"
	"fmt"

	"github.com/laue-dials/laue-go/internal/domain"
)

// MarshalExecutionPlan serializes an execution plan with stable field names.
func MarshalExecutionPlan(plan domain.ExecutionPlan) ([]byte, error) {
	payload := executionPlanPayload{
		RunID:  plan.RunID,
		Images: plan.Images,
		Steps:  make([]executionPlanStepPayload, 0, len(plan.Steps)),
		Edges:  make([]executionPlanEdgePayload, 0, len(plan.Edges)),
	}
	if payload.Images == nil {
		payload.Images = []string{}
	}
	for _, step := range plan.Steps {
		payload.Steps = append(payload.Steps, executionPlanStepPayload{Stage: string(step.Stage)})
	}
	for _, edge := range plan.Edges {
		payload.Edges = append(payload.Edges, executionPlanEdgePayload{
			From: string(edge.From),
			To:   string(edge.To),
		})
	}
	return json.Marshal(payload)
}

// UnmarshalExecutionPlan parses a persisted plan JSON into a domain ExecutionPlan.
func UnmarshalExecutionPlan(raw []byte) (domain.ExecutionPlan, error) {
	var payload executionPlanPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.ExecutionPlan{}, err
	}
	steps := make([]domain.ExecutionPlanStep, 0, len(payload.Steps))
	for _, step := range payload.Steps {
		stage, err := domain.ParseStage(step.Stage)
		if err != nil {
			return domain.ExecutionPlan{}, fmt.Errorf("decode plan: %w", err)
		}
		steps = append(steps, domain.ExecutionPlanStep{Stage: stage})
	}
	edges := make([]domain.ExecutionPlanEdge, 0, len(payload.Edges))
	for _, edge := range payload.Edges {
		edges = append(edges, domain.ExecutionPlanEdge{
			From: domain.Stage(edge.From),
			To:   domain.Stage(edge.To),
		})
	}
	return domain.ExecutionPlan{
		RunID:  payload.RunID,
		Images: payload.Images,
		Steps:  steps,
		Edges:  edges,
	}, nil
}

type executionPlanPayload struct {
	RunID  string                     `json:"runId"`
	Images []string                   `json:"images"`
	Steps  []executionPlanStepPayload `json:"steps"`
	Edges  []executionPlanEdgePayload `json:"edges"`
}

type executionPlanStepPayload struct {
	Stage string `json:"stage"`
}

type executionPlanEdgePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}
