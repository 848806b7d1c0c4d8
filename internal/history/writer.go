package history

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Writer appends history entries and prunes the file to MaxEntries.
// It is safe for concurrent use within one process.
type Writer struct {
	// StateDir is the directory containing the history file.
	StateDir string
	// MaxEntries is the maximum number of entries to retain; 0 means unlimited.
	MaxEntries int
	// Warnings receives non-fatal write failures (default: os.Stderr).
	Warnings io.Writer

	mu sync.Mutex
}

// NewWriter creates a new history writer.
func NewWriter(stateDir string, maxEntries int) *Writer {
	return &Writer{
		StateDir:   stateDir,
		MaxEntries: maxEntries,
	}
}

// LogEntry adds a new entry to the history file.
// Errors are non-fatal: they are reported as warnings and never fail a command.
func (w *Writer) LogEntry(entry HistoryEntry) {
	if err := w.append(entry); err != nil {
		out := w.Warnings
		if out == nil {
			out = os.Stderr
		}
		fmt.Fprintf(out, "Warning: failed to log history: %v\n", err)
	}
}

func (w *Writer) append(entry HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	history, err := LoadHistory(w.StateDir)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	history.Entries = append(history.Entries, entry)

	// Prune oldest entries if over limit
	if w.MaxEntries > 0 && len(history.Entries) > w.MaxEntries {
		excess := len(history.Entries) - w.MaxEntries
		history.Entries = history.Entries[excess:]
	}

	if err := SaveHistory(w.StateDir, history); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}

	return nil
}

// LogCommand records a finished command. executionID and status may be empty
// for commands that did not run a workflow.
func (w *Writer) LogCommand(command, executionID, status string, exitCode int, duration time.Duration) {
	w.LogEntry(HistoryEntry{
		Timestamp:   time.Now(),
		Command:     command,
		ExecutionID: executionID,
		Status:      status,
		ExitCode:    exitCode,
		Duration:    duration.Round(time.Millisecond).String(),
	})
}
