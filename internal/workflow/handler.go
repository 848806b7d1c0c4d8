package workflow

import (
	"context"
	"time"

	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/guard"
	"github.com/ariel-frischer/appgen/internal/stage"
)

// Input is what a stage handler sees of the run. Artifacts is a copy of the
// artifacts committed by earlier stages; handlers cannot mutate the record.
type Input struct {
	ExecutionID  string
	Stage        stage.Stage
	Requirements execution.Requirements
	Artifacts    map[string]execution.Artifact
	// Completed lists the stages that finished successfully so far, in order.
	Completed []stage.Stage
}

// Artifact returns the value of a named earlier artifact.
func (in Input) Artifact(name string) (string, bool) {
	a, ok := in.Artifacts[name]
	if !ok {
		return "", false
	}
	return a.Value(), true
}

// Values returns every earlier artifact's value keyed by name.
func (in Input) Values() map[string]string {
	out := make(map[string]string, len(in.Artifacts))
	for name, a := range in.Artifacts {
		out[name] = a.Value()
	}
	return out
}

// Result is what a handler produces. The scheduler commits Artifacts only when
// the handler finishes successfully within its deadline.
type Result struct {
	Artifacts []execution.Artifact
	Message   string
}

// Handler is one polymorphic unit of stage work.
// Handle must honour ctx cancellation; it is abandoned at the stage deadline.
type Handler interface {
	Handle(ctx context.Context, in Input) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, in Input) (Result, error)

// Handle calls f(ctx, in).
func (f HandlerFunc) Handle(ctx context.Context, in Input) (Result, error) {
	return f(ctx, in)
}

// Task is a handle to asynchronously running stage work.
type Task interface {
	// Poll reports whether the work has finished and, if so, its result.
	Poll(ctx context.Context) (done bool, res Result, err error)
	// Cancel abandons the work. It must be safe to call after completion.
	Cancel()
}

// AsyncHandler starts stage work that completes in the background.
type AsyncHandler interface {
	Start(ctx context.Context, in Input) (Task, error)
}

// Async adapts an AsyncHandler to Handler. The returned handler starts the task
// and polls it every interval until it finishes or the ctx deadline passes; on
// any non-success outcome the task is cancelled so it cannot report later.
func Async(h AsyncHandler, interval time.Duration) Handler {
	return HandlerFunc(func(ctx context.Context, in Input) (Result, error) {
		task, err := h.Start(ctx, in)
		if err != nil {
			return Result{}, err
		}

		timeout := DefaultStageTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}

		out := guard.Poll(ctx, timeout, interval, task.Poll)
		if !out.OK() {
			task.Cancel()
			return Result{}, out.Err()
		}
		return out.Value, nil
	})
}
