package toolkit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/laue-dials/laue-go/internal/platform/env"
)

type Config struct {
	// BinDir holds the dials.* programs. Empty means resolve through PATH.
	BinDir string
	// WorkRoot receives one directory per toolkit call.
	WorkRoot string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BinDir:   strings.TrimSpace(env.String("LAUE_DIALS_BIN_DIR", "")),
		WorkRoot: strings.TrimSpace(env.String("LAUE_WORK_DIR", filepath.Join(os.TempDir(), "laue-mono"))),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.WorkRoot) == "" {
		return errors.New("work root is required")
	}
	return nil
}
