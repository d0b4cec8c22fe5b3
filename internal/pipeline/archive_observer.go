package pipeline

import (
	"context"

	"github.com/laue-dials/laue-go/internal/archive"
	"github.com/laue-dials/laue-go/internal/domain"
)

// ArchiveObserver uploads the outputs of every successful stage.
type ArchiveObserver struct {
	archiver *archive.Archiver
}

var _ Observer = (*ArchiveObserver)(nil)

func NewArchiveObserver(archiver *archive.Archiver) *ArchiveObserver {
	return &ArchiveObserver{archiver: archiver}
}

func (a *ArchiveObserver) BeforeRun(context.Context, domain.ExecutionPlan) error {
	return nil
}

func (a *ArchiveObserver) BeforeStage(context.Context, string, domain.Stage) error {
	return nil
}

func (a *ArchiveObserver) AfterStage(ctx context.Context, runID string, result StageResult) error {
	if result.Outcome != domain.StageOutcomeSucceeded {
		return nil
	}
	files := []string{result.Output.Experiments.Path}
	// find_spots passes the imported experiments through; they were archived
	// with the import stage.
	if result.Stage == domain.StageFindSpots {
		files = nil
	}
	files = append(files, result.Output.Reflections.Path)
	_, err := a.archiver.ArchiveStage(ctx, runID, result.Stage, files...)
	return err
}

func (a *ArchiveObserver) AfterRun(context.Context, domain.ExecutionPlan, domain.RunState) error {
	return nil
}
