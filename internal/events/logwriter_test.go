package events

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out after %d events", len(out))
			return out
		}
	}
}

func TestLogWriter_WritesJSONLines(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	w, err := NewLogWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	w.Report(Event{ExecutionID: "e1", Type: StageStarted, Stage: stage.RequirementsAnalysis, Message: "start"})
	w.Report(Event{ExecutionID: "e2", Type: StageStarted, Stage: stage.Testing})
	w.Report(Event{ExecutionID: "e1", Type: WorkflowCompleted, Message: "done"})
	w.Report(Event{Type: StageStarted})

	data, err := os.ReadFile(LogPath(dir, "e1"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"stage":"requirements_analysis"`)
	assert.Contains(t, lines[1], `"type":"workflow_completed"`)

	_, err = os.Stat(LogPath(dir, "e2"))
	assert.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestTailer_NoFollow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewLogWriter(dir)
	require.NoError(t, err)
	w.Report(Event{ExecutionID: "e1", Type: StageStarted, Stage: stage.Integration})
	w.Report(Event{ExecutionID: "e1", Type: StageCompleted, Stage: stage.Integration})
	require.NoError(t, w.Close())

	path := LogPath(dir, "e1")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tailer, err := NewTailer(path)
	require.NoError(t, err)
	defer tailer.Close()

	got := collect(t, tailer.Tail(context.Background(), false), 2*time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, StageStarted, got[0].Type)
	assert.Equal(t, stage.Integration, got[1].Stage)
}

func TestTailer_NoFollowMissingFile(t *testing.T) {
	t.Parallel()

	tailer, err := NewTailer(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	defer tailer.Close()

	assert.Empty(t, collect(t, tailer.Tail(context.Background(), false), time.Second))
}

func TestTailer_FollowStopsAtTerminalEvent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := LogPath(dir, "e1")

	tailer, err := NewTailer(path)
	require.NoError(t, err)
	defer tailer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch := tailer.Tail(ctx, true)

	w, err := NewLogWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		w.Report(Event{ExecutionID: "e1", Type: StageStarted, Stage: stage.Testing})
		time.Sleep(50 * time.Millisecond)
		w.Report(Event{ExecutionID: "e1", Type: StageCompleted, Stage: stage.Testing})
		w.Report(Event{ExecutionID: "e1", Type: WorkflowCompleted})
	}()

	got := collect(t, ch, 4*time.Second)
	require.Len(t, got, 3)
	assert.Equal(t, WorkflowCompleted, got[2].Type)
}

func TestLineReader_HoldsPartialLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"stage_started"}`+"\n"+`{"type":"sta`), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lr := &lineReader{r: bufio.NewReader(f)}
	line, ok := lr.next()
	require.True(t, ok)
	assert.Equal(t, `{"type":"stage_started"}`, string(line))

	_, ok = lr.next()
	assert.False(t, ok, "partial line must be held back")

	appendFile(t, path, `ge_failed"}`+"\n")
	line, ok = lr.next()
	require.True(t, ok)
	assert.Equal(t, `{"type":"stage_failed"}`, string(line))
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(s)
	require.NoError(t, err)
}
