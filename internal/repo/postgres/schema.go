package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id      TEXT PRIMARY KEY,
		state       TEXT NOT NULL,
		images      JSONB NOT NULL,
		through     TEXT NOT NULL,
		plan        JSONB,
		started_at  TIMESTAMPTZ NOT NULL,
		ended_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS stage_executions (
		stage_execution_id TEXT PRIMARY KEY,
		run_id             TEXT NOT NULL REFERENCES pipeline_runs (run_id),
		stage              TEXT NOT NULL,
		attempt            INTEGER NOT NULL,
		status             TEXT NOT NULL,
		started_at         TIMESTAMPTZ NOT NULL,
		finished_at        TIMESTAMPTZ,
		error_message      TEXT,
		experiments        TEXT,
		reflections        TEXT,
		UNIQUE (run_id, stage, attempt)
	)`,
}

// EnsureSchema creates the ledger tables when they are missing.
func EnsureSchema(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
