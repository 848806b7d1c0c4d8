// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package events carries scheduler progress events to subscribers.
//
// The scheduler emits through a [Reporter]. Reporters must not block the
// driver: [Bus] drops events for slow subscribers instead of waiting.
package events

import (
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
)

// Type identifies the kind of progress event.
type Type string

const (
	WorkflowStarted   Type = "workflow_started"
	StageStarted      Type = "stage_started"
	StageCompleted    Type = "stage_completed"
	StageFailed       Type = "stage_failed"
	StageSkipped      Type = "stage_skipped"
	WorkflowCompleted Type = "workflow_completed"
	WorkflowFailed    Type = "workflow_failed"
	Warning           Type = "warning"
)

// Event is one progress notification for an execution.
type Event struct {
	ExecutionID string      `json:"execution_id"`
	Type        Type        `json:"type"`
	Stage       stage.Stage `json:"stage,omitempty"`
	Message     string      `json:"message"`
	Progress    int         `json:"progress"`
	EarlyStop   bool        `json:"early_stop,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Terminal reports whether the event ends the execution's event stream.
func (e Event) Terminal() bool {
	return e.Type == WorkflowCompleted || e.Type == WorkflowFailed
}

// Reporter receives progress events. Implementations must return promptly.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(ev).
func (f ReporterFunc) Report(ev Event) {
	f(ev)
}

// Nop discards every event.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(Event) {}

// Multi forwards each event to every reporter in order. Nil entries are skipped.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ev)
		}
	}
}
