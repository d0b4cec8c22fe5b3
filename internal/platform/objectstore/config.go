package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/laue-dials/laue-go/internal/platform/env"
)

type Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func ConfigFromEnv() (Config, error) {
	enabled, err := env.Bool("LAUE_ARCHIVE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	useSSL, err := env.Bool("LAUE_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Enabled:   enabled,
		Endpoint:  env.String("LAUE_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: env.String("LAUE_MINIO_ACCESS_KEY", ""),
		SecretKey: env.String("LAUE_MINIO_SECRET_KEY", ""),
		Region:    env.String("LAUE_MINIO_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    env.String("LAUE_MINIO_BUCKET", "laue-runs"),
	}
	if cfg.Enabled {
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
