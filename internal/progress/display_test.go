package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/stretchr/testify/assert"
)

func TestSelectSymbols(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		caps TerminalCapabilities
		want string
	}{
		"unicode": {caps: TerminalCapabilities{IsTTY: true, SupportsUnicode: true}, want: "✓"},
		"ascii":   {caps: TerminalCapabilities{}, want: "[OK]"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SelectSymbols(tt.caps).Checkmark)
		})
	}
}

func TestDisplay_PlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := NewDisplay(&buf, TerminalCapabilities{}, 3)

	d.Report(events.Event{ExecutionID: "e1", Type: events.WorkflowStarted})
	d.Report(events.Event{Type: events.StageSkipped, Stage: stage.Initialization, Message: "no-op"})
	d.Report(events.Event{Type: events.StageStarted, Stage: stage.RequirementsAnalysis})
	d.Report(events.Event{Type: events.StageCompleted, Stage: stage.RequirementsAnalysis})
	d.Report(events.Event{Type: events.Warning, Message: "unknown max_stage"})
	d.Report(events.Event{Type: events.StageStarted, Stage: stage.ArchitectureDesign})
	d.Report(events.Event{Type: events.StageFailed, Stage: stage.ArchitectureDesign, Message: "timed out"})
	d.Report(events.Event{Type: events.WorkflowFailed})
	d.Report(events.Event{Type: events.StageStarted, Stage: stage.Completion})
	d.Stop()

	want := "Workflow e1 started\n" +
		"[SKIP] " + stage.Initialization.Title() + " (skipped: no-op)\n" +
		"[1/3] " + stage.RequirementsAnalysis.Title() + "...\n" +
		"[OK] [1/3] " + stage.RequirementsAnalysis.Title() + "\n" +
		"warning: unknown max_stage\n" +
		"[2/3] " + stage.ArchitectureDesign.Title() + "...\n" +
		"[FAIL] " + stage.ArchitectureDesign.Title() + ": timed out\n"
	assert.Equal(t, want, buf.String(), "events after the terminal event are ignored")
}

func TestSummary(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	finished := created.Add(1500 * time.Millisecond)
	snap := execution.Snapshot{
		ID:              "exec-9",
		Status:          execution.StatusCompleted,
		ProgressPercent: 100,
		StagesCompleted: []stage.Stage{stage.RequirementsAnalysis},
		Artifacts: map[string]execution.Artifact{
			execution.ArtifactRepositoryURL:   {Name: execution.ArtifactRepositoryURL, Ref: "file:///tmp/repo"},
			execution.ArtifactRequirementsDoc: {Name: execution.ArtifactRequirementsDoc, Content: "# doc"},
		},
		Errors:     []string{"security_scanning: boom"},
		CreatedAt:  created,
		FinishedAt: &finished,
	}

	plain := Summary(snap, TerminalCapabilities{})
	assert.Contains(t, plain, "Execution  exec-9\n")
	assert.Contains(t, plain, "Status     completed\n")
	assert.Contains(t, plain, "Duration   1.5s\n")
	assert.Contains(t, plain, "Repository file:///tmp/repo\n")
	assert.Contains(t, plain, "Artifacts  repository_url, requirements_doc\n")
	assert.Contains(t, plain, "Error      security_scanning: boom\n")

	boxed := Summary(snap, TerminalCapabilities{IsTTY: true, SupportsColor: true, SupportsUnicode: true})
	assert.Contains(t, boxed, "exec-9")
	assert.Contains(t, boxed, "╭")
}
