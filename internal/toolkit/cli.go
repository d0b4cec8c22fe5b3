package toolkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/phil"
)

const (
	programImport    = "dials.import"
	programFindSpots = "dials.find_spots"
	programIndex     = "dials.index"
	programRefine    = "dials.refine"
	programStills    = "dials.sequence_to_stills"
)

var programs = []string{programImport, programFindSpots, programIndex, programRefine, programStills}

// CLI implements Toolkit by running the toolkit's command-line programs.
type CLI struct {
	binDir   string
	workRoot string
	logger   *slog.Logger
}

func NewCLI(cfg Config, logger *slog.Logger) (*CLI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	workRoot, err := filepath.Abs(cfg.WorkRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve work root: %w", err)
	}
	c := &CLI{
		binDir:   strings.TrimSpace(cfg.BinDir),
		workRoot: workRoot,
		logger:   logger,
	}
	for _, program := range programs {
		if _, err := exec.LookPath(c.programPath(program)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProgramNotFound, program, err)
		}
	}
	return c, nil
}

func (c *CLI) DoImport(ctx context.Context, args []string, params *phil.Scope) (domain.ExperimentList, error) {
	images := expandImageArgs(args)
	call, err := c.prepare(domain.StageImport, params)
	if err != nil {
		return domain.ExperimentList{}, err
	}
	expts := call.output("imported.expt")
	argv := append(call.args(), images...)
	argv = append(argv,
		"output.experiments="+expts,
		"output.log="+call.output(programImport+".log"),
	)
	if err := c.run(ctx, call, programImport, argv, false, expts); err != nil {
		return domain.ExperimentList{}, err
	}
	return domain.ExperimentList{Path: expts}, nil
}

func (c *CLI) DoSpotfinding(ctx context.Context, expts domain.ExperimentList, params *phil.Scope, configureLogging bool) (domain.ReflectionTable, error) {
	call, err := c.prepare(domain.StageFindSpots, params)
	if err != nil {
		return domain.ReflectionTable{}, err
	}
	refls := call.output("strong.refl")
	argv := append(call.args(), expts.Path,
		"output.reflections="+refls,
		"output.log="+call.output(programFindSpots+".log"),
	)
	if err := c.run(ctx, call, programFindSpots, argv, configureLogging, refls); err != nil {
		return domain.ReflectionTable{}, err
	}
	return domain.ReflectionTable{Path: refls}, nil
}

func (c *CLI) Index(ctx context.Context, expts domain.ExperimentList, refls []domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, error) {
	call, err := c.prepare(domain.StageIndex, params)
	if err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, err
	}
	outExpts := call.output("indexed.expt")
	outRefls := call.output("indexed.refl")
	argv := append(call.args(), expts.Path)
	for _, r := range refls {
		argv = append(argv, r.Path)
	}
	argv = append(argv,
		"output.experiments="+outExpts,
		"output.reflections="+outRefls,
		"output.log="+call.output(programIndex+".log"),
	)
	if err := c.run(ctx, call, programIndex, argv, false, outExpts, outRefls); err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, err
	}
	return domain.ExperimentList{Path: outExpts}, domain.ReflectionTable{Path: outRefls}, nil
}

func (c *CLI) RunDialsRefine(ctx context.Context, expts domain.ExperimentList, refls domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, RefinerReport, RefinementHistory, error) {
	call, err := c.prepare(domain.StageRefine, params)
	if err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, RefinerReport{}, RefinementHistory{}, err
	}
	outExpts := call.output("refined.expt")
	outRefls := call.output("refined.refl")
	history := call.output("refined.history.json")
	logPath := call.output(programRefine + ".log")
	argv := append(call.args(), expts.Path, refls.Path,
		"output.experiments="+outExpts,
		"output.reflections="+outRefls,
		"output.history="+history,
		"output.log="+logPath,
	)
	if err := c.run(ctx, call, programRefine, argv, false, outExpts, outRefls); err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, RefinerReport{}, RefinementHistory{}, err
	}
	return domain.ExperimentList{Path: outExpts},
		domain.ReflectionTable{Path: outRefls},
		RefinerReport{LogPath: logPath},
		RefinementHistory{Path: history},
		nil
}

func (c *CLI) SequenceToStills(ctx context.Context, expts domain.ExperimentList, refls domain.ReflectionTable, params *phil.Scope) (domain.ExperimentList, domain.ReflectionTable, error) {
	call, err := c.prepare(domain.StageSplit, params)
	if err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, err
	}
	outExpts := call.output("stills.expt")
	outRefls := call.output("stills.refl")
	argv := append(call.args(), expts.Path, refls.Path,
		"output.experiments="+outExpts,
		"output.reflections="+outRefls,
	)
	if err := c.run(ctx, call, programStills, argv, false, outExpts, outRefls); err != nil {
		return domain.ExperimentList{}, domain.ReflectionTable{}, err
	}
	return domain.ExperimentList{Path: outExpts}, domain.ReflectionTable{Path: outRefls}, nil
}

// invocation is the private working directory of one toolkit call.
type invocation struct {
	stage     domain.Stage
	dir       string
	paramFile string
}

func (c *CLI) prepare(stage domain.Stage, params *phil.Scope) (invocation, error) {
	dir := filepath.Join(c.workRoot, string(stage)+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return invocation{}, fmt.Errorf("create work dir: %w", err)
	}
	call := invocation{stage: stage, dir: dir}
	if params.Empty() {
		return call, nil
	}
	call.paramFile = filepath.Join(dir, string(stage)+".phil")
	if err := os.WriteFile(call.paramFile, []byte(params.String()), 0o644); err != nil {
		return invocation{}, fmt.Errorf("write %s parameters: %w", stage, err)
	}
	return call, nil
}

func (i invocation) output(name string) string {
	return filepath.Join(i.dir, name)
}

// args starts a fresh argument list; the parameter file goes first so later
// output assignments take precedence.
func (i invocation) args() []string {
	if i.paramFile == "" {
		return []string{}
	}
	return []string{i.paramFile}
}

func (c *CLI) programPath(program string) string {
	if c.binDir == "" {
		return program
	}
	return filepath.Join(c.binDir, program)
}

func (c *CLI) run(ctx context.Context, call invocation, program string, args []string, configureLogging bool, outputs ...string) error {
	logger := c.logger.With("program", program, "stage", string(call.stage), "work_dir", call.dir)
	start := time.Now()
	logger.Info("toolkit command started")

	var buf bytes.Buffer
	var sink io.Writer = &buf
	var lines *lineLogger
	if configureLogging {
		lines = &lineLogger{logger: logger}
		sink = io.MultiWriter(&buf, lines)
	}

	cmd := exec.CommandContext(ctx, c.programPath(program), args...)
	cmd.Dir = call.dir
	cmd.Stdout = sink
	cmd.Stderr = sink
	err := cmd.Run()
	if lines != nil {
		lines.flush()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn("toolkit command canceled", "error", ctxErr, "duration", time.Since(start))
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Warn("toolkit command failed", "exit_code", exitErr.ExitCode(), "duration", time.Since(start))
			return &CommandError{
				Program:  program,
				Args:     args,
				Dir:      call.dir,
				ExitCode: exitErr.ExitCode(),
				Output:   strings.TrimSpace(buf.String()),
			}
		}
		return fmt.Errorf("%s: %w", program, err)
	}
	for _, path := range outputs {
		if _, err := os.Stat(path); err != nil {
			return &MissingOutputError{Program: program, Path: path}
		}
	}
	logger.Info("toolkit command finished", "duration", time.Since(start))
	return nil
}

// expandImageArgs resolves glob patterns and makes paths absolute, since the
// toolkit runs inside its own work directory. Malformed patterns and patterns
// that match nothing are passed on so the toolkit reports them.
func expandImageArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if strings.Contains(arg, "=") {
			out = append(out, arg)
			continue
		}
		if strings.ContainsAny(arg, "*?[") {
			if matches, _ := filepath.Glob(arg); len(matches) > 0 {
				for _, m := range matches {
					out = append(out, absPath(m))
				}
				continue
			}
		}
		out = append(out, absPath(arg))
	}
	return out
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// lineLogger forwards complete output lines to the logger.
type lineLogger struct {
	logger  *slog.Logger
	partial []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		l.emit(l.partial[:i])
		l.partial = l.partial[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	if len(l.partial) > 0 {
		l.emit(l.partial)
		l.partial = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if strings.TrimSpace(text) == "" {
		return
	}
	l.logger.Info("toolkit output", "line", text)
}
