// Package env reads typed settings from LAUE_* environment variables.
package env

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the value of key, or def when key is unset.
func String(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func Duration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := lookupTrimmed(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

func Bool(key string, def bool) (bool, error) {
	if v, ok := lookupTrimmed(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return b, nil
	}
	return def, nil
}

func Int(key string, def int) (int, error) {
	if v, ok := lookupTrimmed(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return i, nil
	}
	return def, nil
}

// LogLevel parses debug, info, warn or error. Empty values fall back to def.
func LogLevel(key string, def slog.Level) (slog.Level, error) {
	v, ok := lookupTrimmed(key)
	if !ok {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return def, fmt.Errorf("parse %s: %w", key, err)
	}
	return level, nil
}

// lookupTrimmed treats a blank value the same as an unset key.
func lookupTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}
