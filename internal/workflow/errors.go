package workflow

import (
	"errors"
	"fmt"

	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/stage"
)

// ErrAlreadyStarted is returned by Scheduler.Run for an execution that is not pending.
var ErrAlreadyStarted = execution.ErrAlreadyStarted

// errCriticalSibling cancels the other members of a parallel group.
var errCriticalSibling = errors.New("critical stage in group failed")

// Reason classifies why a stage failed.
type Reason string

const (
	ReasonDependency Reason = "dependency_not_met"
	ReasonHandler    Reason = "handler_failure"
	ReasonTimeout    Reason = "timeout"
	ReasonCancelled  Reason = "cancelled"
)

// StageError is returned by Scheduler.Run when a failure aborts the run.
type StageError struct {
	Stage    stage.Stage
	Reason   Reason
	Critical bool
	Err      error
}

// Error returns a human-readable message naming the stage and reason.
func (e *StageError) Error() string {
	kind := "stage"
	if e.Critical {
		kind = "critical stage"
	}
	return fmt.Sprintf("%s %s failed (%s): %v", kind, e.Stage, e.Reason, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *StageError) Unwrap() error {
	return e.Err
}
