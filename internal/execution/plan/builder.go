package plan

import (
	"fmt"
	"strings"

	"github.com/laue-dials/laue-go/internal/domain"
)

// Request describes which images to process and how far to go.
type Request struct {
	RunID   string
	Images  []string
	Through domain.Stage
	// SkipSplit stops after refinement even when Through is split.
	SkipSplit bool
}

// BuildPlan generates the linear stage plan for a run. Stages always start at
// import and run in pipeline order up to and including Through.
func BuildPlan(req Request) (domain.ExecutionPlan, error) {
	issues := &ValidationError{}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		issues.Add("run id is required")
	}

	images := make([]string, 0, len(req.Images))
	for _, image := range req.Images {
		if image = strings.TrimSpace(image); image != "" {
			images = append(images, image)
		}
	}
	if len(images) == 0 {
		issues.Add("at least one image path or pattern is required")
	}

	through := req.Through
	if through == "" {
		through = domain.StageSplit
	}
	if !through.Valid() {
		issues.Add(fmt.Sprintf("unknown through stage %q", req.Through))
	}
	if err := issues.OrNil(); err != nil {
		return domain.ExecutionPlan{}, err
	}

	stages := domain.Stages()[:through.Index()+1]
	if req.SkipSplit && through == domain.StageSplit {
		stages = stages[:len(stages)-1]
	}

	steps := make([]domain.ExecutionPlanStep, 0, len(stages))
	edges := make([]domain.ExecutionPlanEdge, 0, len(stages))
	for i, stage := range stages {
		steps = append(steps, domain.ExecutionPlanStep{Stage: stage})
		if i > 0 {
			edges = append(edges, domain.ExecutionPlanEdge{From: stages[i-1], To: stage})
		}
	}

	return domain.ExecutionPlan{
		RunID:  runID,
		Images: images,
		Steps:  steps,
		Edges:  edges,
	}, nil
}
