package repo

import (
	"context"
	"errors"
	"time"

	"github.com/laue-dials/laue-go/internal/domain"
)

var ErrNotFound = errors.New("not found")

// RunRepository persists pipeline runs.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.Run) error
	GetRun(ctx context.Context, id string) (domain.Run, error)
	UpdateRunState(ctx context.Context, id string, state domain.RunState, endedAt *time.Time) error
}

// StageExecutionRepository persists one record per stage attempt.
type StageExecutionRepository interface {
	InsertAttempt(ctx context.Context, record StageExecutionRecord) (StageExecutionRecord, bool, error)
	ListByRun(ctx context.Context, runID string) ([]StageExecutionRecord, error)
}

type StageExecutionRecord struct {
	ID           string
	RunID        string
	Stage        domain.Stage
	Attempt      int
	Status       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string
	Experiments  string
	Reflections  string
}
