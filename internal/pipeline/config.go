package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/phil"
)

// Config is the pipeline description read from a YAML file.
type Config struct {
	Images    []string             `yaml:"images"`
	Through   string               `yaml:"through"`
	SkipSplit bool                 `yaml:"skip_split"`
	Stages    map[string]yaml.Node `yaml:"stages"`
}

// LoadConfig reads a pipeline file. An empty path yields an empty config.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read pipeline config: %w", err)
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode pipeline config: %w", err)
	}
	return cfg, nil
}

// ThroughStage resolves the configured last stage; empty means split.
func (c Config) ThroughStage() (domain.Stage, error) {
	if strings.TrimSpace(c.Through) == "" {
		return domain.StageSplit, nil
	}
	return domain.ParseStage(c.Through)
}

// Scopes holds one parameter tree per stage.
type Scopes map[domain.Stage]*phil.Scope

// For returns the scope of stage, never nil.
func (s Scopes) For(stage domain.Stage) *phil.Scope {
	if scope, ok := s[stage]; ok && scope != nil {
		return scope
	}
	return phil.New()
}

// DefaultScopes carries the settings the monochromatic stages rely on:
// FFT3D indexing and scan-varying refinement.
func DefaultScopes() Scopes {
	index := phil.New()
	_ = index.Set("indexing.method", "fft3d")
	refine := phil.New()
	_ = refine.Set("refinement.parameterisation.scan_varying", "True")
	return Scopes{
		domain.StageIndex:  index,
		domain.StageRefine: refine,
	}
}

// Scopes merges the file's stage trees over the defaults.
func (c Config) Scopes() (Scopes, error) {
	scopes := DefaultScopes()
	for name, node := range c.Stages {
		stage, err := domain.ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("stages: %w", err)
		}
		scope, err := phil.FromNode(&node)
		if err != nil {
			return nil, fmt.Errorf("stages.%s: %w", stage, err)
		}
		scopes.merge(stage, scope)
	}
	return scopes, nil
}

// ApplyOverrides merges "stage:path=value" assignments into the scopes.
func (s Scopes) ApplyOverrides(overrides []string) error {
	for _, raw := range overrides {
		name, assignment, ok := strings.Cut(raw, ":")
		if !ok {
			return fmt.Errorf("override %q must have the form stage:name=value", raw)
		}
		stage, err := domain.ParseStage(name)
		if err != nil {
			return fmt.Errorf("override %q: %w", raw, err)
		}
		a, err := phil.ParseAssignment(assignment)
		if err != nil {
			return fmt.Errorf("override %q: %w", raw, err)
		}
		scope := phil.New()
		if err := scope.Set(a.Path, a.Value); err != nil {
			return fmt.Errorf("override %q: %w", raw, err)
		}
		s.merge(stage, scope)
	}
	return nil
}

func (s Scopes) merge(stage domain.Stage, scope *phil.Scope) {
	existing, ok := s[stage]
	if !ok || existing == nil {
		s[stage] = scope
		return
	}
	existing.Merge(scope)
}
