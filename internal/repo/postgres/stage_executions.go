package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/repo"
)

type StageExecutionStore struct {
	db DB
}

var _ repo.StageExecutionRepository = (*StageExecutionStore)(nil)

const (
	stageExecutionColumns = `stage_execution_id, run_id, stage, attempt, status, started_at, finished_at, error_message, experiments, reflections`

	insertStageExecutionQuery = `INSERT INTO stage_executions (` + stageExecutionColumns + `)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	 ON CONFLICT (run_id, stage, attempt) DO NOTHING
	 RETURNING ` + stageExecutionColumns

	selectStageExecutionQuery = `SELECT ` + stageExecutionColumns + `
	 FROM stage_executions
	 WHERE run_id = $1 AND stage = $2 AND attempt = $3`

	listStageExecutionsByRunQuery = `SELECT ` + stageExecutionColumns + `
	 FROM stage_executions
	 WHERE run_id = $1
	 ORDER BY started_at ASC, stage ASC, attempt ASC`
)

func NewStageExecutionStore(db DB) *StageExecutionStore {
	if db == nil {
		return nil
	}
	return &StageExecutionStore{db: db}
}

// InsertAttempt records a stage attempt. The boolean is false when the attempt
// already existed, in which case the stored record is returned.
func (s *StageExecutionStore) InsertAttempt(ctx context.Context, record repo.StageExecutionRecord) (repo.StageExecutionRecord, bool, error) {
	if s == nil || s.db == nil {
		return repo.StageExecutionRecord{}, false, fmt.Errorf("stage execution store not initialized")
	}
	runID := strings.TrimSpace(record.RunID)
	status := strings.TrimSpace(record.Status)

	if runID == "" {
		return repo.StageExecutionRecord{}, false, fmt.Errorf("run id is required")
	}
	if !record.Stage.Valid() {
		return repo.StageExecutionRecord{}, false, fmt.Errorf("invalid stage %q", record.Stage)
	}
	if record.Attempt < 1 {
		return repo.StageExecutionRecord{}, false, fmt.Errorf("attempt must be >= 1")
	}
	if status == "" {
		return repo.StageExecutionRecord{}, false, fmt.Errorf("status is required")
	}

	startedAt := record.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	var finishedAt sql.NullTime
	if record.FinishedAt != nil && !record.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: record.FinishedAt.UTC(), Valid: true}
	}

	id := record.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	row := s.db.QueryRowContext(
		ctx,
		insertStageExecutionQuery,
		id,
		runID,
		string(record.Stage),
		record.Attempt,
		status,
		startedAt.UTC(),
		finishedAt,
		nullIfEmpty(record.ErrorMessage),
		nullIfEmpty(record.Experiments),
		nullIfEmpty(record.Reflections),
	)
	inserted, err := scanStageExecution(row)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return repo.StageExecutionRecord{}, false, fmt.Errorf("insert stage execution: %w", err)
		}
		existing, err := s.getAttempt(ctx, runID, record.Stage, record.Attempt)
		if err != nil {
			return repo.StageExecutionRecord{}, false, err
		}
		return existing, false, nil
	}
	return inserted, true, nil
}

func (s *StageExecutionStore) ListByRun(ctx context.Context, runID string) ([]repo.StageExecutionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("stage execution store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	rows, err := s.db.QueryContext(ctx, listStageExecutionsByRunQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage executions: %w", err)
	}
	defer rows.Close()

	records := make([]repo.StageExecutionRecord, 0)
	for rows.Next() {
		record, err := scanStageExecution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stage executions: %w", err)
	}
	return records, nil
}

func (s *StageExecutionStore) getAttempt(ctx context.Context, runID string, stage domain.Stage, attempt int) (repo.StageExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectStageExecutionQuery, runID, string(stage), attempt)
	return scanStageExecution(row)
}

type stageExecutionScanner interface {
	Scan(dest ...any) error
}

func scanStageExecution(scanner stageExecutionScanner) (repo.StageExecutionRecord, error) {
	var (
		record       repo.StageExecutionRecord
		stage        string
		finishedAt   sql.NullTime
		errorMessage sql.NullString
		experiments  sql.NullString
		reflections  sql.NullString
	)
	if err := scanner.Scan(
		&record.ID,
		&record.RunID,
		&stage,
		&record.Attempt,
		&record.Status,
		&record.StartedAt,
		&finishedAt,
		&errorMessage,
		&experiments,
		&reflections,
	); err != nil {
		return repo.StageExecutionRecord{}, handleNotFound(err)
	}
	record.Stage = domain.Stage(stage)
	record.StartedAt = record.StartedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		record.FinishedAt = &t
	}
	record.ErrorMessage = errorMessage.String
	record.Experiments = experiments.String
	record.Reflections = reflections.String
	return record, nil
}
