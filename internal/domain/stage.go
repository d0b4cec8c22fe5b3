package domain

import (
	"fmt"
	"strings"
)

// Stage names one step of the monochromatic pipeline.
type Stage string

const (
	StageImport    Stage = "import"
	StageFindSpots Stage = "find_spots"
	StageIndex     Stage = "index"
	StageRefine    Stage = "refine"
	StageSplit     Stage = "split"
)

var stageOrder = []Stage{StageImport, StageFindSpots, StageIndex, StageRefine, StageSplit}

// Stages returns every stage in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage accepts a stage name, tolerating case, surrounding space and dashes.
func ParseStage(value string) (Stage, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for _, stage := range stageOrder {
		if string(stage) == normalized {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", value)
}

// Index is the zero-based position of the stage, or -1 for unknown stages.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}
