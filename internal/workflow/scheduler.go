package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/guard"
	"github.com/ariel-frischer/appgen/internal/stage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultStageTimeout bounds a single stage handler.
	DefaultStageTimeout = 30 * time.Minute
	// DefaultMaxParallel bounds concurrent handlers in a parallel group.
	DefaultMaxParallel = 4
)

// Scheduler drives executions through a Registry. It holds no per-run state
// and may run any number of independent executions concurrently.
type Scheduler struct {
	registry    *Registry
	timeout     time.Duration
	maxParallel int
	reporter    events.Reporter
	logger      *log.Logger
	debug       bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStageTimeout sets the default per-stage timeout.
func WithStageTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxParallel sets the concurrency limit for parallel groups.
func WithMaxParallel(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.maxParallel = n
		}
	}
}

// WithReporter sets the progress event reporter.
func WithReporter(r events.Reporter) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(s *Scheduler) {
		s.debug = debug
	}
}

// NewScheduler creates a Scheduler over reg.
func NewScheduler(reg *Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:    reg,
		timeout:     DefaultStageTimeout,
		maxParallel: DefaultMaxParallel,
		reporter:    events.Nop{},
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry the scheduler was built with.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// StageTimeout returns the default per-stage timeout.
func (s *Scheduler) StageTimeout() time.Duration {
	return s.timeout
}

func (s *Scheduler) debugLog(format string, args ...interface{}) {
	if s.debug {
		s.logger.Printf("[scheduler] debug: "+format, args...)
	}
}

// Run drives exec to a terminal status.
//
// Groups run in declared order. A critical failure, including a stage whose
// dependencies are not met, aborts the run with StatusFailed and a *StageError.
// Non-critical failures are recorded and the run continues. When the execution
// has a max stage, the run completes right after that stage succeeds; if it
// fails without aborting, the remaining stages still run. Cancelling ctx
// fails the run.
func (s *Scheduler) Run(ctx context.Context, exec *execution.Execution) (execution.Status, error) {
	limit, limited := exec.MaxStage()
	notRegistered := limited && !s.registry.Contains(limit)
	if notRegistered {
		limited = false
	}

	if err := exec.Start(s.registry.Planned(limit, limited)); err != nil {
		return exec.Status(), err
	}

	r := &run{s: s, exec: exec, limit: limit, limited: limited}
	if notRegistered {
		msg := fmt.Sprintf("warning: max_stage %s is not part of this pipeline; running all stages", limit)
		_ = exec.AddError(msg)
	}

	r.emit(events.WorkflowStarted, stage.Unrecognized, "workflow started")
	for _, msg := range exec.Snapshot().Errors {
		r.emit(events.Warning, stage.Unrecognized, msg)
	}

	for _, g := range s.registry.groups {
		s.debugLog("%s: entering group %s (%s)", exec.ID(), g.Name, g.Mode)

		var stop bool
		var err error
		if g.Mode == stage.Parallel {
			stop, err = r.parallel(ctx, g)
		} else {
			stop, err = r.sequential(ctx, g)
		}

		if err != nil {
			return r.fail(err)
		}
		if stop {
			return r.complete(true)
		}
	}
	return r.complete(false)
}

// run is the per-execution driver state.
type run struct {
	s       *Scheduler
	exec    *execution.Execution
	limit   stage.Stage
	limited bool
}

// attempt is one stage's path through the scheduler.
type attempt struct {
	def     Definition
	missing []stage.Stage
	timeout time.Duration
	out     guard.Outcome[Result]
}

func (r *run) sequential(ctx context.Context, g Group) (bool, error) {
	for _, st := range g.Stages {
		def := r.s.registry.defs[st]
		if def.Skip {
			r.skip(st)
			if r.stopsAt(st) {
				return true, nil
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, &StageError{Stage: st, Reason: ReasonCancelled, Critical: true, Err: err}
		}

		a := r.prepare(def)
		if a.missing == nil {
			r.begin(def)
			a.out = r.invoke(ctx, def, a.timeout)
		}
		if err := r.commit(ctx, a); err != nil {
			return false, err
		}
		if r.reached(st) {
			return true, nil
		}
	}
	return false, nil
}

// parallel dispatches every ready member concurrently and commits the
// outcomes in declared order once all members have settled.
func (r *run) parallel(ctx context.Context, g Group) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &StageError{Stage: g.Stages[0], Reason: ReasonCancelled, Critical: true, Err: err}
	}

	var attempts []*attempt
	stop := false
	for _, st := range g.Stages {
		def := r.s.registry.defs[st]
		if def.Skip {
			r.skip(st)
			stop = stop || r.stopsAt(st)
			continue
		}
		a := r.prepare(def)
		if a.missing == nil {
			r.begin(def)
		}
		attempts = append(attempts, a)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.s.maxParallel)
	for _, a := range attempts {
		if a.missing != nil {
			continue
		}
		eg.Go(func() error {
			a.out = r.invoke(gctx, a.def, a.timeout)
			if a.def.Critical && !a.out.OK() {
				return errCriticalSibling
			}
			return nil
		})
	}
	_ = eg.Wait()

	var abort []error
	for _, a := range attempts {
		if err := r.commit(ctx, a); err != nil {
			abort = append(abort, err)
		}
		stop = stop || r.reached(a.def.Stage)
	}
	if len(abort) > 0 {
		return false, rootCause(abort)
	}
	return stop, nil
}

// rootCause prefers the failure that triggered sibling cancellation over the
// cancellations it caused.
func rootCause(errs []error) error {
	for _, err := range errs {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return errs[0]
}

func (r *run) stopsAt(st stage.Stage) bool {
	return r.limited && r.limit == st
}

// reached reports whether st is the max stage and completed successfully. A
// failed non-critical max stage does not stop the run.
func (r *run) reached(st stage.Stage) bool {
	return r.stopsAt(st) && r.exec.CompletedSet()[st]
}

func (r *run) skip(st stage.Stage) {
	r.s.debugLog("%s: skipping no-op stage %s", r.exec.ID(), st)
	r.emit(events.StageSkipped, st, st.Title()+" skipped (no-op)")
}

func (r *run) prepare(def Definition) *attempt {
	a := &attempt{def: def, timeout: def.Timeout}
	if a.timeout <= 0 {
		a.timeout = r.s.timeout
	}
	missing, ok := r.s.registry.DependenciesMet(def.Stage, r.exec.CompletedSet())
	if !ok {
		a.missing = missing
	}
	return a
}

func (r *run) begin(def Definition) {
	if err := r.exec.BeginStage(def.Stage); err != nil {
		r.s.logger.Printf("[scheduler] %s: warning: begin %s: %v", r.exec.ID(), def.Stage, err)
	}
	r.emit(events.StageStarted, def.Stage, "Starting "+def.Stage.Title())
}

// invoke calls the stage handler under the timeout guard. The handler only sees
// a copy of the record, so an abandoned handler cannot change it.
func (r *run) invoke(ctx context.Context, def Definition, timeout time.Duration) guard.Outcome[Result] {
	in := Input{
		ExecutionID:  r.exec.ID(),
		Stage:        def.Stage,
		Requirements: r.exec.Requirements(),
		Artifacts:    r.exec.Artifacts(),
		Completed:    r.exec.Completed(),
	}
	r.s.debugLog("%s: invoking %s (timeout %v)", r.exec.ID(), def.Stage, timeout)

	out := guard.Await(ctx, timeout, func(ctx context.Context) (Result, error) {
		return def.Handler.Handle(ctx, in)
	})
	r.s.debugLog("%s: %s finished with %s after %v", r.exec.ID(), def.Stage, out.Kind, out.Elapsed)
	return out
}

// commit records an attempt on the execution and applies the failure policy.
func (r *run) commit(ctx context.Context, a *attempt) error {
	st := a.def.Stage

	if a.missing != nil {
		err := fmt.Errorf("dependencies not met: %s", joinStages(a.missing))
		r.recordFailure(st, fmt.Sprintf("%s: %v", st, err))
		return r.policy(ctx, a.def, ReasonDependency, err)
	}

	switch a.out.Kind {
	case guard.Success:
		res := a.out.Value
		if err := r.exec.CompleteStage(st, res.Artifacts); err != nil {
			r.recordFailure(st, fmt.Sprintf("%s: %v", st, err))
			return r.policy(ctx, a.def, ReasonHandler, err)
		}
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("%s completed in %v", st.Title(), a.out.Elapsed.Round(time.Millisecond))
		}
		r.emit(events.StageCompleted, st, msg)
		return nil

	case guard.Timeout:
		r.recordFailure(st, fmt.Sprintf("%s: %v", st, a.out.Err()))
		return r.policy(ctx, a.def, ReasonTimeout, a.out.Err())

	default:
		r.recordFailure(st, fmt.Sprintf("%s: %v", st, a.out.Err()))
		return r.policy(ctx, a.def, ReasonHandler, a.out.Err())
	}
}

func (r *run) recordFailure(st stage.Stage, msg string) {
	if err := r.exec.FailStage(st, msg); err != nil {
		r.s.logger.Printf("[scheduler] %s: warning: recording failure of %s: %v", r.exec.ID(), st, err)
	}
	r.emit(events.StageFailed, st, msg)
}

// policy decides whether a failed stage aborts the run.
func (r *run) policy(ctx context.Context, def Definition, reason Reason, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &StageError{Stage: def.Stage, Reason: ReasonCancelled, Critical: def.Critical, Err: ctxErr}
	}
	if def.Critical {
		return &StageError{Stage: def.Stage, Reason: reason, Critical: true, Err: err}
	}
	r.s.logger.Printf("[scheduler] %s: non-critical stage %s failed, continuing: %v", r.exec.ID(), def.Stage, err)
	return nil
}

func (r *run) complete(early bool) (execution.Status, error) {
	if err := r.exec.Finish(execution.StatusCompleted, early); err != nil {
		return r.exec.Status(), err
	}
	msg := "workflow completed"
	if early {
		msg = fmt.Sprintf("workflow completed (early stop after %s)", r.limit)
	}
	r.emitEvent(events.Event{Type: events.WorkflowCompleted, Message: msg, EarlyStop: early})
	return execution.StatusCompleted, nil
}

func (r *run) fail(cause error) (execution.Status, error) {
	if err := r.exec.Finish(execution.StatusFailed, false); err != nil {
		return r.exec.Status(), errors.Join(cause, err)
	}
	r.s.logger.Printf("[scheduler] %s: workflow failed: %v", r.exec.ID(), cause)
	r.emitEvent(events.Event{Type: events.WorkflowFailed, Message: cause.Error()})
	return execution.StatusFailed, cause
}

func (r *run) emit(t events.Type, st stage.Stage, msg string) {
	r.emitEvent(events.Event{Type: t, Stage: st, Message: msg})
}

func (r *run) emitEvent(ev events.Event) {
	ev.ExecutionID = r.exec.ID()
	ev.Progress = r.exec.Progress()
	ev.Timestamp = time.Now()
	r.s.reporter.Report(ev)
}

func joinStages(stages []stage.Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}
