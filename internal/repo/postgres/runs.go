package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/repo"
)

type RunStore struct {
	db DB
}

var _ repo.RunRepository = (*RunStore)(nil)

const (
	insertRunQuery = `INSERT INTO pipeline_runs (run_id, state, images, through, plan, started_at, ended_at)
	 VALUES ($1,$2,$3,$4,$5,$6,$7)`

	selectRunQuery = `SELECT run_id, state, images, through, plan, started_at, ended_at
	 FROM pipeline_runs
	 WHERE run_id = $1`

	// Terminal states are never overwritten.
	updateRunStateQuery = `UPDATE pipeline_runs
	 SET state = $2, ended_at = $3
	 WHERE run_id = $1 AND state NOT IN ('succeeded', 'failed')`
)

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	images := run.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	var plan any
	if len(run.Plan) > 0 {
		plan = run.Plan
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	var endedAt sql.NullTime
	if run.EndedAt != nil {
		endedAt = sql.NullTime{Time: run.EndedAt.UTC(), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, insertRunQuery,
		strings.TrimSpace(run.ID),
		string(run.State),
		imagesJSON,
		string(run.Through),
		plan,
		startedAt.UTC(),
		endedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s == nil || s.db == nil {
		return domain.Run{}, fmt.Errorf("run store not initialized")
	}
	var (
		run        domain.Run
		state      string
		imagesJSON []byte
		through    string
		plan       []byte
		endedAt    sql.NullTime
	)
	if err := s.db.QueryRowContext(ctx, selectRunQuery, strings.TrimSpace(id)).Scan(
		&run.ID,
		&state,
		&imagesJSON,
		&through,
		&plan,
		&run.StartedAt,
		&endedAt,
	); err != nil {
		return domain.Run{}, handleNotFound(err)
	}
	if err := json.Unmarshal(imagesJSON, &run.Images); err != nil {
		return domain.Run{}, fmt.Errorf("decode images: %w", err)
	}
	run.State = domain.NormalizeRunState(state)
	run.Through = domain.Stage(through)
	run.Plan = plan
	run.StartedAt = run.StartedAt.UTC()
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		run.EndedAt = &t
	}
	return run, nil
}

func (s *RunStore) UpdateRunState(ctx context.Context, id string, state domain.RunState, endedAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if domain.NormalizeRunState(string(state)) == "" {
		return fmt.Errorf("invalid run state %q", state)
	}
	var ended sql.NullTime
	if endedAt != nil {
		ended = sql.NullTime{Time: endedAt.UTC(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, updateRunStateQuery, strings.TrimSpace(id), string(state), ended)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}
