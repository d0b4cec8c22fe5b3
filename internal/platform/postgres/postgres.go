// Package postgres opens the optional run ledger database through pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/laue-dials/laue-go/internal/platform/env"
)

// Config describes the ledger connection and its small connection pool.
type Config struct {
	// URL is empty when no ledger is configured.
	URL          string
	PingTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

func ConfigFromEnv() (Config, error) {
	pingTimeout, err := env.Duration("LAUE_DATABASE_PING_TIMEOUT", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxOpenConns, err := env.Int("LAUE_DATABASE_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := env.Int("LAUE_DATABASE_MAX_IDLE_CONNS", 2)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		URL:          strings.TrimSpace(env.String("LAUE_DATABASE_URL", "")),
		PingTimeout:  pingTimeout,
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxIdleConns,
	}
	if !cfg.Enabled() {
		return cfg, nil
	}
	return cfg, cfg.Validate()
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("LAUE_DATABASE_URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("LAUE_DATABASE_PING_TIMEOUT must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("LAUE_DATABASE_MAX_OPEN_CONNS must be >= 1")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("LAUE_DATABASE_MAX_IDLE_CONNS must be between 0 and %d", c.MaxOpenConns)
	}
	return nil
}

// Open connects to the ledger database and checks it answers within the ping
// timeout.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	return db, nil
}
