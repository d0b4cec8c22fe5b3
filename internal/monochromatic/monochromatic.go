// Package monochromatic runs the single-wavelength processing stages: image
// import, spot finding, FFT3D indexing, scan-varying refinement and splitting
// a rotation sequence into stills.
//
// Every stage hands its inputs to the toolkit and returns the toolkit's
// results. Toolkit errors are returned as is, without wrapping, so callers see
// exactly what the toolkit reported.
package monochromatic

import (
	"context"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/phil"
	"github.com/laue-dials/laue-go/internal/toolkit"
)

// Processor runs the stages against a toolkit. It keeps no state between
// calls.
type Processor struct {
	toolkit toolkit.Toolkit
}

// New returns a Processor that delegates every stage to tk.
func New(tk toolkit.Toolkit) *Processor {
	return &Processor{toolkit: tk}
}

// ImportImages reads image files into an experiment list. args are file names
// and may contain wildcards.
func (p *Processor) ImportImages(ctx context.Context, scope *phil.Scope, args ...string) (domain.ExperimentList, error) {
	return p.toolkit.DoImport(ctx, args, scope)
}

// FindSpots finds strong reflections on every image of expts.
func (p *Processor) FindSpots(ctx context.Context, scope *phil.Scope, expts domain.ExperimentList) (domain.ReflectionTable, error) {
	return p.toolkit.DoSpotfinding(ctx, expts, scope, true)
}

// InitialIndex indexes the dataset at a single wavelength. Indexing may fail
// when no lattice explains the spots.
func (p *Processor) InitialIndex(ctx context.Context, params *phil.Scope, expts domain.ExperimentList, refls domain.ReflectionTable) (domain.ExperimentList, domain.ReflectionTable, error) {
	return p.toolkit.Index(ctx, expts, []domain.ReflectionTable{refls}, params)
}

// ScanVaryingRefine refines the geometry over the image sequence.
func (p *Processor) ScanVaryingRefine(ctx context.Context, params *phil.Scope, expts domain.ExperimentList, refls domain.ReflectionTable) (domain.ExperimentList, domain.ReflectionTable, error) {
	exptsRefined, reflsRefined, _, _, err := p.toolkit.RunDialsRefine(ctx, expts, refls, params)
	if err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, err
	}
	return exptsRefined, reflsRefined, nil
}

// SplitSequence converts a rotation sequence into one still per image.
func (p *Processor) SplitSequence(ctx context.Context, params *phil.Scope, expts domain.ExperimentList, refls domain.ReflectionTable) (domain.ExperimentList, domain.ReflectionTable, error) {
	exptsStills, reflsStills, err := p.toolkit.SequenceToStills(ctx, expts, refls, params)
	if err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, err
	}
	return exptsStills, reflsStills, nil
}
