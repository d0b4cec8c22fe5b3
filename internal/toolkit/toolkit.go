// Package toolkit reaches the external diffraction-processing toolkit. Each
// Toolkit method corresponds to one toolkit routine; results are opaque file
// handles and failures are the toolkit's own.
package toolkit

import (
	"context"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/phil"
)

// Toolkit is the collaborator surface consumed by the monochromatic stages.
type Toolkit interface {
	// DoImport reads image headers into an experiment list.
	DoImport(ctx context.Context, args []string, params *phil.Scope) (domain.ExperimentList, error)
	// DoSpotfinding finds strong spots on every image of expts.
	DoSpotfinding(ctx context.Context, expts domain.ExperimentList, params *phil.Scope, configureLogging bool) (domain.ReflectionTable, error)
	// Index accepts one reflection table per experiment file.
	Index(ctx context.Context, expts domain.ExperimentList, refls []domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, error)
	// RunDialsRefine returns refined models plus the refiner report and
	// the per-step refinement history.
	RunDialsRefine(ctx context.Context, expts domain.ExperimentList, refls domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, RefinerReport, RefinementHistory, error)
	// SequenceToStills converts a rotation sequence into one still per image.
	SequenceToStills(ctx context.Context, expts domain.ExperimentList, refls domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, error)
}

// RefinerReport points at the log written by a refinement run.
type RefinerReport struct {
	LogPath string
}

// RefinementHistory points at the JSON history of a refinement run.
type RefinementHistory struct {
	Path string
}
