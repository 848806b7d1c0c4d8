package events

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// LogPath returns the JSONL event log path for an execution.
func LogPath(dir, executionID string) string {
	return filepath.Join(dir, executionID+".jsonl")
}

// LogWriter appends events as JSON lines to one file per execution.
// Files are opened lazily and closed after the terminal event.
type LogWriter struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

// NewLogWriter creates a LogWriter rooted at dir, creating it if needed.
func NewLogWriter(dir string) (*LogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	return &LogWriter{dir: dir, files: make(map[string]*os.File)}, nil
}

// Dir returns the directory holding the event logs.
func (w *LogWriter) Dir() string {
	return w.dir
}

// Report implements Reporter. Write failures are logged and otherwise ignored.
func (w *LogWriter) Report(ev Event) {
	if err := w.write(ev); err != nil {
		log.Printf("[events] warning: writing event log for %s: %v", ev.ExecutionID, err)
	}
}

func (w *LogWriter) write(ev Event) error {
	if ev.ExecutionID == "" {
		return fmt.Errorf("event has no execution id")
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.files[ev.ExecutionID]
	if !ok {
		f, err = os.OpenFile(LogPath(w.dir, ev.ExecutionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		w.files[ev.ExecutionID] = f
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	if ev.Terminal() {
		delete(w.files, ev.ExecutionID)
		return f.Close()
	}
	return nil
}

// Close closes any log files still open.
func (w *LogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for id, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing event log %s: %w", id, err)
		}
		delete(w.files, id)
	}
	return firstErr
}
