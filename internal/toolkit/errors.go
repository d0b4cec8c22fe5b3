package toolkit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProgramNotFound = errors.New("toolkit program not found")
	ErrMissingOutput   = errors.New("toolkit did not write expected output")
)

// CommandError is a non-zero exit from a toolkit program. Error returns the
// program's own output unchanged so the toolkit's diagnosis reaches the user.
type CommandError struct {
	Program  string
	Args     []string
	Dir      string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Output) != "" {
		return e.Output
	}
	return fmt.Sprintf("%s exited with status %d", e.Program, e.ExitCode)
}

// MissingOutputError names the file a program reported success for but never wrote.
type MissingOutputError struct {
	Program string
	Path    string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMissingOutput, e.Program, e.Path)
}

func (e *MissingOutputError) Unwrap() error {
	return ErrMissingOutput
}
