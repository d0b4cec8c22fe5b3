package monochromatic

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/phil"
	"github.com/laue-dials/laue-go/internal/toolkit"
)

// syntheticExperiments is what a fake handle stands for.
type syntheticExperiments struct {
	images  int
	crystal bool
	stills  bool
}

type syntheticRow struct {
	image      int
	miller     *[3]int
	wavelength float64
}

// fakeToolkit keeps synthetic toolkit state behind opaque handles, spots per
// image fixed by spotsPerImage.
type fakeToolkit struct {
	spotsPerImage int
	experiments   map[string]syntheticExperiments
	reflections   map[string][]syntheticRow
	calls         []string
	lastIndexRefl []domain.ReflectionTable
	lastScope     *phil.Scope
	err           error
	seq           int
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		spotsPerImage: 4,
		experiments:   map[string]syntheticExperiments{},
		reflections:   map[string][]syntheticRow{},
	}
}

var _ toolkit.Toolkit = (*fakeToolkit)(nil)

func (f *fakeToolkit) handle(name string) string {
	f.seq++
	return fmt.Sprintf("/work/%02d/%s", f.seq, name)
}

func (f *fakeToolkit) DoImport(_ context.Context, args []string, params *phil.Scope) (domain.ExperimentList, error) {
	f.calls = append(f.calls, "do_import")
	f.lastScope = params
	if f.err != nil {
		return domain.ExperimentList{}, f.err
	}
	images := 0
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return domain.ExperimentList{}, err
		}
		images += len(matches)
	}
	if images == 0 {
		return domain.ExperimentList{}, fmt.Errorf("Sorry: no images matched %v", args)
	}
	path := f.handle("imported.expt")
	f.experiments[path] = syntheticExperiments{images: images}
	return domain.ExperimentList{Path: path}, nil
}

func (f *fakeToolkit) DoSpotfinding(_ context.Context, expts domain.ExperimentList, params *phil.Scope, configureLogging bool) (domain.ReflectionTable, error) {
	f.calls = append(f.calls, fmt.Sprintf("do_spotfinding(configure_logging=%v)", configureLogging))
	f.lastScope = params
	if f.err != nil {
		return domain.ReflectionTable{}, f.err
	}
	e := f.experiments[expts.Path]
	rows := make([]syntheticRow, 0, e.images*f.spotsPerImage)
	for img := 0; img < e.images; img++ {
		for i := 0; i < f.spotsPerImage; i++ {
			rows = append(rows, syntheticRow{image: img})
		}
	}
	path := f.handle("strong.refl")
	f.reflections[path] = rows
	return domain.ReflectionTable{Path: path}, nil
}

func (f *fakeToolkit) Index(_ context.Context, expts domain.ExperimentList, refls []domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, error) {
	f.calls = append(f.calls, "index")
	f.lastScope = params
	f.lastIndexRefl = refls
	if f.err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, f.err
	}
	e := f.experiments[expts.Path]
	e.crystal = true
	var rows []syntheticRow
	for _, r := range refls {
		for i, row := range f.reflections[r.Path] {
			// every fourth spot stays unindexed and is dropped
			if i%4 == 3 {
				continue
			}
			hkl := [3]int{i, -i, 1}
			row.miller = &hkl
			row.wavelength = 1.0
			rows = append(rows, row)
		}
	}
	outExpts, outRefls := f.handle("indexed.expt"), f.handle("indexed.refl")
	f.experiments[outExpts] = e
	f.reflections[outRefls] = rows
	return domain.ExperimentList{Path: outExpts}, domain.ReflectionTable{Path: outRefls}, nil
}

func (f *fakeToolkit) RunDialsRefine(_ context.Context, expts domain.ExperimentList, refls domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, toolkit.RefinerReport, toolkit.RefinementHistory, error) {
	f.calls = append(f.calls, "run_dials_refine")
	f.lastScope = params
	if f.err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, toolkit.RefinerReport{}, toolkit.RefinementHistory{}, f.err
	}
	var rows []syntheticRow
	for i, row := range f.reflections[refls.Path] {
		// outlier rejection
		if i%5 == 4 {
			continue
		}
		row.wavelength = 0.9793
		rows = append(rows, row)
	}
	outExpts, outRefls := f.handle("refined.expt"), f.handle("refined.refl")
	f.experiments[outExpts] = f.experiments[expts.Path]
	f.reflections[outRefls] = rows
	return domain.ExperimentList{Path: outExpts},
		domain.ReflectionTable{Path: outRefls},
		toolkit.RefinerReport{LogPath: f.handle("dials.refine.log")},
		toolkit.RefinementHistory{Path: f.handle("refined.history.json")},
		nil
}

func (f *fakeToolkit) SequenceToStills(_ context.Context, expts domain.ExperimentList, refls domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, error) {
	f.calls = append(f.calls, "sequence_to_stills")
	f.lastScope = params
	if f.err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, f.err
	}
	e := f.experiments[expts.Path]
	outExpts, outRefls := f.handle("stills.expt"), f.handle("stills.refl")
	f.experiments[outExpts] = syntheticExperiments{images: e.images, crystal: e.crystal, stills: true}
	f.reflections[outRefls] = append([]syntheticRow(nil), f.reflections[refls.Path]...)
	return domain.ExperimentList{Path: outExpts}, domain.ReflectionTable{Path: outRefls}, nil
}
