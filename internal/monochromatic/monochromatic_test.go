package monochromatic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/phil"
)

func writeImages(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= n; i++ {
		name := filepath.Join(dir, "rot_"+string(rune('0'+i))+".cbf")
		if err := os.WriteFile(name, nil, 0o644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	return filepath.Join(dir, "rot_*.cbf")
}

func TestImportImagesCountsMatchedFiles(t *testing.T) {
	tk := newFakeToolkit()
	p := New(tk)
	scope := phil.New()

	expts, err := p.ImportImages(context.Background(), scope, writeImages(t, 3))
	if err != nil {
		t.Fatalf("ImportImages() err=%v", err)
	}
	if got := tk.experiments[expts.Path].images; got != 3 {
		t.Fatalf("images=%d, want 3", got)
	}
	if tk.lastScope != scope {
		t.Fatalf("scope was not forwarded")
	}
}

func TestFindSpotsReferencesValidImages(t *testing.T) {
	tk := newFakeToolkit()
	p := New(tk)
	ctx := context.Background()

	expts, err := p.ImportImages(ctx, nil, writeImages(t, 3))
	if err != nil {
		t.Fatalf("ImportImages() err=%v", err)
	}
	refls, err := p.FindSpots(ctx, nil, expts)
	if err != nil {
		t.Fatalf("FindSpots() err=%v", err)
	}
	images := tk.experiments[expts.Path].images
	rows := tk.reflections[refls.Path]
	if len(rows) == 0 {
		t.Fatalf("expected spots")
	}
	for i, row := range rows {
		if row.image < 0 || row.image >= images {
			t.Fatalf("row %d image=%d outside [0,%d)", i, row.image, images)
		}
	}
	if tk.calls[len(tk.calls)-1] != "do_spotfinding(configure_logging=true)" {
		t.Fatalf("calls=%v", tk.calls)
	}
}

func TestInitialIndexPassesSingleReflectionTable(t *testing.T) {
	tk := newFakeToolkit()
	p := New(tk)
	ctx := context.Background()

	expts, _ := p.ImportImages(ctx, nil, writeImages(t, 3))
	refls, _ := p.FindSpots(ctx, nil, expts)
	indexedExpts, indexedRefls, err := p.InitialIndex(ctx, nil, expts, refls)
	if err != nil {
		t.Fatalf("InitialIndex() err=%v", err)
	}
	if diff := cmp.Diff([]domain.ReflectionTable{refls}, tk.lastIndexRefl); diff != "" {
		t.Fatalf("index reflections mismatch (-want +got):\n%s", diff)
	}
	if !tk.experiments[indexedExpts.Path].crystal {
		t.Fatalf("expected crystal model on indexed experiments")
	}
	for i, row := range tk.reflections[indexedRefls.Path] {
		if row.miller == nil {
			t.Fatalf("row %d has no Miller index", i)
		}
	}
}

func TestScanVaryingRefineDiscardsAuxiliaryResults(t *testing.T) {
	tk := newFakeToolkit()
	p := New(tk)
	ctx := context.Background()

	expts, _ := p.ImportImages(ctx, nil, writeImages(t, 3))
	refls, _ := p.FindSpots(ctx, nil, expts)
	expts, refls, _ = p.InitialIndex(ctx, nil, expts, refls)

	refinedExpts, refinedRefls, err := p.ScanVaryingRefine(ctx, nil, expts, refls)
	if err != nil {
		t.Fatalf("ScanVaryingRefine() err=%v", err)
	}
	if filepath.Base(refinedExpts.Path) != "refined.expt" || filepath.Base(refinedRefls.Path) != "refined.refl" {
		t.Fatalf("refined handles=%v %v", refinedExpts, refinedRefls)
	}
}

func TestEndToEndRotationDataset(t *testing.T) {
	tk := newFakeToolkit()
	p := New(tk)
	ctx := context.Background()

	expts, err := p.ImportImages(ctx, nil, writeImages(t, 3))
	if err != nil {
		t.Fatalf("ImportImages() err=%v", err)
	}
	strong, err := p.FindSpots(ctx, nil, expts)
	if err != nil {
		t.Fatalf("FindSpots() err=%v", err)
	}
	indexedExpts, indexedRefls, err := p.InitialIndex(ctx, nil, expts, strong)
	if err != nil {
		t.Fatalf("InitialIndex() err=%v", err)
	}
	refinedExpts, refinedRefls, err := p.ScanVaryingRefine(ctx, nil, indexedExpts, indexedRefls)
	if err != nil {
		t.Fatalf("ScanVaryingRefine() err=%v", err)
	}

	found := len(tk.reflections[strong.Path])
	refined := tk.reflections[refinedRefls.Path]
	if len(refined) > found {
		t.Fatalf("refined rows=%d exceed found spots=%d", len(refined), found)
	}
	for i, row := range refined {
		if row.wavelength == 0 {
			t.Fatalf("row %d has no refined wavelength", i)
		}
	}

	stillsExpts, stillsRefls, err := p.SplitSequence(ctx, nil, refinedExpts, refinedRefls)
	if err != nil {
		t.Fatalf("SplitSequence() err=%v", err)
	}
	stills := tk.experiments[stillsExpts.Path]
	if !stills.stills || stills.images != 3 {
		t.Fatalf("stills=%+v, want 3 stills", stills)
	}
	perImage := make([]int, stills.images)
	for _, row := range tk.reflections[stillsRefls.Path] {
		perImage[row.image]++
	}
	total := 0
	for _, n := range perImage {
		total += n
	}
	if total != len(refined) {
		t.Fatalf("still reflections=%d, want %d", total, len(refined))
	}

	want := []string{
		"do_import",
		"do_spotfinding(configure_logging=true)",
		"index",
		"run_dials_refine",
		"sequence_to_stills",
	}
	if diff := cmp.Diff(want, tk.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestToolkitErrorsAreReturnedUnchanged(t *testing.T) {
	sentinel := errors.New("Sorry: refinement did not converge")
	ctx := context.Background()
	expts := domain.ExperimentList{Path: "/work/in.expt"}
	refls := domain.ReflectionTable{Path: "/work/in.refl"}

	tests := []struct {
		name string
		call func(p *Processor) error
	}{
		{"import", func(p *Processor) error { _, err := p.ImportImages(ctx, nil, "x"); return err }},
		{"find_spots", func(p *Processor) error { _, err := p.FindSpots(ctx, nil, expts); return err }},
		{"index", func(p *Processor) error { _, _, err := p.InitialIndex(ctx, nil, expts, refls); return err }},
		{"refine", func(p *Processor) error { _, _, err := p.ScanVaryingRefine(ctx, nil, expts, refls); return err }},
		{"split", func(p *Processor) error { _, _, err := p.SplitSequence(ctx, nil, expts, refls); return err }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tk := newFakeToolkit()
			tk.err = sentinel
			if err := tc.call(New(tk)); err != sentinel {
				t.Fatalf("err=%v, want the toolkit error itself", err)
			}
		})
	}
}
