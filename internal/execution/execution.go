// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package execution holds the mutable record of one workflow run.
//
// An [Execution] is owned by a single driver (the scheduler) for the lifetime of
// the run. Concurrent readers never share its lock discipline: they call
// [Execution.Snapshot], which returns a deep copy taken under a brief read lock.
// Once the status is terminal every mutator returns [ErrTerminal].
package execution

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
)

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further stage may execute.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TerminalMarker is reported as the current stage of a completed run.
const TerminalMarker = "finished"

var (
	// ErrTerminal is returned by mutators once the run has completed or failed.
	ErrTerminal = errors.New("execution is terminal")
	// ErrAlreadyStarted is returned when Start is called on a non-pending run.
	ErrAlreadyStarted = errors.New("execution already started")
	// ErrNotRunning is returned when a stage transition is attempted before Start.
	ErrNotRunning = errors.New("execution is not running")
)

// Execution is the aggregate root of one workflow run.
type Execution struct {
	mu sync.RWMutex

	id           string
	requirements Requirements
	rawMaxStage  string
	maxStage     stage.Stage

	status    Status
	current   stage.Stage
	finished  bool
	earlyStop bool
	planned   int

	completed []stage.Stage
	failed    []stage.Stage
	failedSet map[stage.Stage]struct{}
	errors    []string

	startTimes map[stage.Stage]time.Time
	endTimes   map[stage.Stage]time.Time

	artifacts map[string]Artifact

	createdAt  time.Time
	updatedAt  time.Time
	finishedAt time.Time
}

// New creates a pending execution for a validated request.
// An unrecognized max stage is ignored and recorded as a single warning.
func New(id string, req Request) *Execution {
	now := time.Now()
	e := &Execution{
		id:           id,
		requirements: req.Requirements(),
		rawMaxStage:  req.MaxStage,
		status:       StatusPending,
		failedSet:    make(map[stage.Stage]struct{}),
		startTimes:   make(map[stage.Stage]time.Time),
		endTimes:     make(map[stage.Stage]time.Time),
		artifacts:    make(map[string]Artifact),
		createdAt:    now,
		updatedAt:    now,
	}

	if req.MaxStage != "" {
		if s := stage.Parse(req.MaxStage); s.Valid() {
			e.maxStage = s
		} else {
			e.errors = append(e.errors, fmt.Sprintf(
				"warning: unrecognized max_stage %q ignored; running all stages", req.MaxStage))
		}
	}
	return e
}

// ID returns the opaque execution id.
func (e *Execution) ID() string {
	return e.id
}

// Requirements returns a copy of the immutable input parameters.
func (e *Execution) Requirements() Requirements {
	return e.requirements.Clone()
}

// MaxStage returns the early-stop stage and whether one is in effect.
func (e *Execution) MaxStage() (stage.Stage, bool) {
	return e.maxStage, e.maxStage.Valid()
}

// Status returns the current lifecycle state.
func (e *Execution) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Progress returns the completion percentage of the planned stages.
func (e *Execution) Progress() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progressLocked()
}

// Completed returns a copy of the completed stages in completion order.
func (e *Execution) Completed() []stage.Stage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.completed)
}

// CompletedSet returns the completed stages as a set, used for dependency checks.
func (e *Execution) CompletedSet() map[stage.Stage]bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	set := make(map[stage.Stage]bool, len(e.completed))
	for _, s := range e.completed {
		set[s] = true
	}
	return set
}

// Start moves a pending execution to running. planned is the number of stages the
// run expects to execute and is used for progress accounting.
func (e *Execution) Start(planned int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPending {
		return ErrAlreadyStarted
	}
	e.status = StatusRunning
	e.planned = planned
	e.touch()
	return nil
}

// BeginStage records the start time of s and makes it the current stage.
func (e *Execution) BeginStage(s stage.Stage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkRunning(); err != nil {
		return err
	}
	e.current = s
	e.startTimes[s] = time.Now()
	e.touch()
	return nil
}

// CompleteStage commits the artifacts of s and appends it to the completed list.
// Artifacts are write-once: if any name already exists nothing is committed and
// ErrArtifactExists is returned.
func (e *Execution) CompleteStage(s stage.Stage, artifacts []Artifact) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkRunning(); err != nil {
		return err
	}
	now, err := e.putArtifactsLocked(s, artifacts)
	if err != nil {
		return err
	}
	e.completed = append(e.completed, s)
	e.endTimes[s] = now
	e.touch()
	return nil
}

// PutArtifacts stores artifacts produced by s without completing the stage.
func (e *Execution) PutArtifacts(s stage.Stage, artifacts ...Artifact) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkRunning(); err != nil {
		return err
	}
	if _, err := e.putArtifactsLocked(s, artifacts); err != nil {
		return err
	}
	e.touch()
	return nil
}

func (e *Execution) putArtifactsLocked(s stage.Stage, artifacts []Artifact) (time.Time, error) {
	seen := make(map[string]struct{}, len(artifacts))
	for _, a := range artifacts {
		if a.Name == "" {
			return time.Time{}, errors.New("artifact name is empty")
		}
		if _, ok := e.artifacts[a.Name]; ok {
			return time.Time{}, fmt.Errorf("%w: %s", ErrArtifactExists, a.Name)
		}
		if _, ok := seen[a.Name]; ok {
			return time.Time{}, fmt.Errorf("%w: %s (duplicate in result)", ErrArtifactExists, a.Name)
		}
		seen[a.Name] = struct{}{}
	}

	now := time.Now()
	for _, a := range artifacts {
		a.Stage = s
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		e.artifacts[a.Name] = a
	}
	return now, nil
}

// FailStage marks s as failed and appends msg to the error list.
func (e *Execution) FailStage(s stage.Stage, msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkRunning(); err != nil {
		return err
	}
	if _, ok := e.failedSet[s]; !ok {
		e.failedSet[s] = struct{}{}
		e.failed = append(e.failed, s)
	}
	if _, started := e.startTimes[s]; started {
		e.endTimes[s] = time.Now()
	}
	e.errors = append(e.errors, msg)
	e.touch()
	return nil
}

// AddError appends a message to the error list without failing a stage.
func (e *Execution) AddError(msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.IsTerminal() {
		return ErrTerminal
	}
	e.errors = append(e.errors, msg)
	e.touch()
	return nil
}

// Finish moves the execution to a terminal status. A completed run reports the
// terminal marker as its current stage; a failed run keeps the stage it failed at.
// earlyStop labels a completion caused by max_stage.
func (e *Execution) Finish(status Status, earlyStop bool) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish with non-terminal status %q", status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.IsTerminal() {
		return ErrTerminal
	}
	e.status = status
	if status == StatusCompleted {
		e.finished = true
		e.earlyStop = earlyStop
	}
	e.finishedAt = time.Now()
	e.touch()
	return nil
}

// Artifact returns a named artifact produced by an earlier stage.
func (e *Execution) Artifact(name string) (Artifact, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.artifacts[name]
	return a, ok
}

// Artifacts returns a copy of all artifacts produced so far.
func (e *Execution) Artifacts() map[string]Artifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.artifacts)
}

func (e *Execution) checkRunning() error {
	switch {
	case e.status.IsTerminal():
		return ErrTerminal
	case e.status != StatusRunning:
		return ErrNotRunning
	}
	return nil
}

func (e *Execution) touch() {
	e.updatedAt = time.Now()
}
