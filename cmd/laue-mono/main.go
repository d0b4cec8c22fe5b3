package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/laue-dials/laue-go/internal/archive"
	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/execution/plan"
	"github.com/laue-dials/laue-go/internal/monochromatic"
	"github.com/laue-dials/laue-go/internal/pipeline"
	"github.com/laue-dials/laue-go/internal/platform/env"
	"github.com/laue-dials/laue-go/internal/platform/objectstore"
	"github.com/laue-dials/laue-go/internal/platform/postgres"
	repopg "github.com/laue-dials/laue-go/internal/repo/postgres"
	storageobjectstore "github.com/laue-dials/laue-go/internal/storage/objectstore"
	"github.com/laue-dials/laue-go/internal/toolkit"
)

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", env.String("LAUE_PIPELINE_CONFIG", ""), "Pipeline YAML file")
		through    = flag.String("through", "", "Last stage to run: import, find_spots, index, refine or split")
		skipSplit  = flag.Bool("skip-split", false, "Stop after refinement")
		overrides  multiFlag
	)
	flag.Var(&overrides, "set", "Parameter override stage:name=value (repeatable)")
	flag.Parse()

	level, err := env.LogLevel("LAUE_LOG_LEVEL", slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if err != nil {
		logger.Error("invalid env", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runTimeout, err := env.Duration("LAUE_RUN_TIMEOUT", 0)
	if err != nil {
		logger.Error("invalid env", "error", err)
		return 2
	}
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		logger.Error("invalid pipeline config", "error", err)
		return 2
	}
	scopes, err := cfg.Scopes()
	if err != nil {
		logger.Error("invalid pipeline config", "error", err)
		return 2
	}
	if err := scopes.ApplyOverrides(overrides); err != nil {
		logger.Error("invalid override", "error", err)
		return 2
	}

	lastStage, err := cfg.ThroughStage()
	if err != nil {
		logger.Error("invalid pipeline config", "error", err)
		return 2
	}
	if strings.TrimSpace(*through) != "" {
		lastStage, err = domain.ParseStage(*through)
		if err != nil {
			logger.Error("invalid -through", "error", err)
			return 2
		}
	}
	images := cfg.Images
	if flag.NArg() > 0 {
		images = flag.Args()
	}

	runID := uuid.NewString()
	runPlan, err := plan.BuildPlan(plan.Request{
		RunID:     runID,
		Images:    images,
		Through:   lastStage,
		SkipSplit: cfg.SkipSplit || *skipSplit,
	})
	if err != nil {
		logger.Error("invalid run", "error", err)
		return 2
	}

	tkCfg, err := toolkit.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid toolkit config", "error", err)
		return 2
	}
	tkCfg.WorkRoot = filepath.Join(tkCfg.WorkRoot, runID)
	tk, err := toolkit.NewCLI(tkCfg, logger)
	if err != nil {
		logger.Error("toolkit unavailable", "error", err)
		return 2
	}

	var observers []pipeline.Observer

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		return 2
	}
	if dbCfg.Enabled() {
		db, err := openLedger(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			return 1
		}
		defer func() { _ = db.Close() }()
		ledger, err := pipeline.NewLedger(repopg.NewRunStore(db), repopg.NewStageExecutionStore(db))
		if err != nil {
			logger.Error("ledger init failed", "error", err)
			return 2
		}
		observers = append(observers, ledger)
	}

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		return 2
	}
	if storeCfg.Enabled {
		archiver, err := openArchive(ctx, storeCfg, logger)
		if err != nil {
			logger.Error("object store unavailable", "error", err)
			return 1
		}
		observers = append(observers, pipeline.NewArchiveObserver(archiver))
	}

	runner, err := pipeline.NewRunner(monochromatic.New(tk), logger, observers...)
	if err != nil {
		logger.Error("runner init failed", "error", err)
		return 2
	}

	logger.Info("run started", "run_id", runID, "through", string(runPlan.Last()), "images", runPlan.Images)
	result, err := runner.Run(ctx, runPlan, scopes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	final := result.Final()
	fmt.Fprintf(os.Stdout, "run_id=%s\n", result.RunID)
	if !final.Experiments.IsZero() {
		fmt.Fprintf(os.Stdout, "experiments=%s\n", final.Experiments)
	}
	if !final.Reflections.IsZero() {
		fmt.Fprintf(os.Stdout, "reflections=%s\n", final.Reflections)
	}
	return 0
}

func openLedger(ctx context.Context, cfg postgres.Config) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repopg.EnsureSchema(schemaCtx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func openArchive(ctx context.Context, cfg objectstore.Config, logger *slog.Logger) (*archive.Archiver, error) {
	client, err := objectstore.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := objectstore.EnsureBucket(startupCtx, client, cfg); err != nil {
		return nil, err
	}
	store, err := storageobjectstore.NewMinioStoreWithClient(client)
	if err != nil {
		return nil, err
	}
	return archive.New(store, cfg.Bucket, logger)
}
