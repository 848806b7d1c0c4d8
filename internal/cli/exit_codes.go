package cli

import (
	"context"
	"errors"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/lifecycle"
)

// Exit codes for the appgen CLI, stable for scripts and CI.
const (
	ExitSuccess = 0

	// ExitWorkflowFailed indicates the workflow finished in failed status
	ExitWorkflowFailed = 1

	// ExitRuntimeError indicates an unexpected runtime error
	ExitRuntimeError = 2

	ExitInvalidArguments = 3

	// ExitMissingDependencies indicates a required tool or directory is unavailable
	ExitMissingDependencies = 4

	// ExitTimeout indicates the run exceeded --timeout
	ExitTimeout = 5

	// ExitNotFound indicates an unknown execution id
	ExitNotFound = 6

	ExitInvalidConfig = 7
)

// exitError pins an exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coder lifecycle.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeout
	}
	if cliErr := cerrors.AsCLIError(err); cliErr != nil {
		switch cliErr.Category {
		case cerrors.Argument:
			return ExitInvalidArguments
		case cerrors.Configuration:
			return ExitInvalidConfig
		case cerrors.Prerequisite:
			return ExitMissingDependencies
		case cerrors.NotFound:
			return ExitNotFound
		}
	}
	return ExitRuntimeError
}
