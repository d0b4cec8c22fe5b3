package env

import (
	"log/slog"
	"testing"
	"time"
)

func TestString_Default(t *testing.T) {
	got := String("LAUE_STRING_DOES_NOT_EXIST", "fallback")
	if got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
}

func TestString_Override(t *testing.T) {
	t.Setenv("LAUE_STRING_KEY", "value")
	got := String("LAUE_STRING_KEY", "fallback")
	if got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func TestDuration(t *testing.T) {
	got, err := Duration("LAUE_DURATION_DOES_NOT_EXIST", 5*time.Second)
	if err != nil || got != 5*time.Second {
		t.Fatalf("Duration()=%v err=%v, want 5s", got, err)
	}

	t.Setenv("LAUE_DURATION_KEY", "250ms")
	got, err = Duration("LAUE_DURATION_KEY", 5*time.Second)
	if err != nil || got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v err=%v, want 250ms", got, err)
	}

	t.Setenv("LAUE_DURATION_BLANK", "  ")
	got, err = Duration("LAUE_DURATION_BLANK", time.Minute)
	if err != nil || got != time.Minute {
		t.Fatalf("Duration()=%v err=%v, want default for blank value", got, err)
	}

	t.Setenv("LAUE_DURATION_INVALID", "not-a-duration")
	if _, err := Duration("LAUE_DURATION_INVALID", 5*time.Second); err == nil {
		t.Fatalf("Duration() expected error")
	}
}

func TestBool(t *testing.T) {
	t.Setenv("LAUE_BOOL_KEY", "false")
	got, err := Bool("LAUE_BOOL_KEY", true)
	if err != nil || got {
		t.Fatalf("Bool()=%v err=%v, want false", got, err)
	}

	t.Setenv("LAUE_BOOL_INVALID", "nope")
	if _, err := Bool("LAUE_BOOL_INVALID", false); err == nil {
		t.Fatalf("Bool() expected error")
	}
}

func TestInt(t *testing.T) {
	got, err := Int("LAUE_INT_DOES_NOT_EXIST", 42)
	if err != nil || got != 42 {
		t.Fatalf("Int()=%v err=%v, want 42", got, err)
	}

	t.Setenv("LAUE_INT_KEY", "7")
	got, err = Int("LAUE_INT_KEY", 42)
	if err != nil || got != 7 {
		t.Fatalf("Int()=%v err=%v, want 7", got, err)
	}

	t.Setenv("LAUE_INT_INVALID", "seven")
	if _, err := Int("LAUE_INT_INVALID", 42); err == nil {
		t.Fatalf("Int() expected error")
	}
}

func TestLogLevel(t *testing.T) {
	got, err := LogLevel("LAUE_LEVEL_DOES_NOT_EXIST", slog.LevelInfo)
	if err != nil || got != slog.LevelInfo {
		t.Fatalf("LogLevel()=%v err=%v, want info", got, err)
	}

	t.Setenv("LAUE_LEVEL_KEY", "debug")
	got, err = LogLevel("LAUE_LEVEL_KEY", slog.LevelInfo)
	if err != nil || got != slog.LevelDebug {
		t.Fatalf("LogLevel()=%v err=%v, want debug", got, err)
	}

	t.Setenv("LAUE_LEVEL_INVALID", "loud")
	if _, err := LogLevel("LAUE_LEVEL_INVALID", slog.LevelInfo); err == nil {
		t.Fatalf("LogLevel() expected error")
	}
}
