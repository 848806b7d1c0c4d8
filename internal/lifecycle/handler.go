// Package lifecycle wraps CLI commands with timing, completion notifications
// and history logging.
//
// The wrappers are synchronous: they capture the start time, call the
// command function, then report the outcome. Nil handlers and loggers are
// skipped.
package lifecycle

import (
	"errors"
	"time"
)

// NotificationHandler is satisfied by *notify.Handler.
type NotificationHandler interface {
	// OnCommandComplete is called when a CLI command finishes.
	OnCommandComplete(name string, success bool, duration time.Duration)
	// OnError is called with the command's error when it fails.
	OnError(name string, err error)
}

// HistoryLogger is satisfied by *history.Writer.
type HistoryLogger interface {
	LogCommand(command, executionID, status string, exitCode int, duration time.Duration)
}

// Outcome describes the workflow a command ran, if any.
type Outcome struct {
	ExecutionID string
	Status      string
}

// ExitCoder lets an error choose the process exit code recorded in history.
type ExitCoder interface {
	ExitCode() int
}

// Run executes fn and notifies handler of the result.
func Run(handler NotificationHandler, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	notify(handler, name, err, time.Since(start))
	return err
}

// RunWithHistory executes fn, notifies handler and appends a history entry.
func RunWithHistory(handler NotificationHandler, logger HistoryLogger, name string, fn func() (Outcome, error)) error {
	start := time.Now()
	outcome, err := fn()
	duration := time.Since(start)

	notify(handler, name, err, duration)
	if logger != nil {
		logger.LogCommand(name, outcome.ExecutionID, outcome.Status, ExitCode(err), duration)
	}
	return err
}

func notify(handler NotificationHandler, name string, err error, duration time.Duration) {
	if handler == nil {
		return
	}
	handler.OnCommandComplete(name, err == nil, duration)
	if err != nil {
		handler.OnError(name, err)
	}
}

// ExitCode returns 0 for nil, the code from an ExitCoder in err's chain, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
