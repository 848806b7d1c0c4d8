// Package history records appgen CLI invocations in a YAML file under the
// state directory.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the history file inside the state directory.
const FileName = "history.yaml"

// HistoryEntry is one recorded command.
type HistoryEntry struct {
	Timestamp   time.Time `yaml:"timestamp" json:"timestamp"`
	Command     string    `yaml:"command" json:"command"`
	ExecutionID string    `yaml:"execution_id,omitempty" json:"execution_id,omitempty"`
	// Status is the workflow status for commands that ran one.
	Status   string `yaml:"status,omitempty" json:"status,omitempty"`
	ExitCode int    `yaml:"exit_code" json:"exit_code"`
	Duration string `yaml:"duration" json:"duration"`
}

// HistoryFile is the on-disk document, oldest entry first.
type HistoryFile struct {
	Entries []HistoryEntry `yaml:"entries" json:"entries"`
}

// Path returns the history file path for stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// LoadHistory reads the history file. A missing file yields an empty history.
func LoadHistory(stateDir string) (*HistoryFile, error) {
	data, err := os.ReadFile(Path(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &HistoryFile{}, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var h HistoryFile
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", Path(stateDir), err)
	}
	return &h, nil
}

// SaveHistory writes the history file atomically via a temp file and rename.
func SaveHistory(stateDir string, h *HistoryFile) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	tmp, err := os.CreateTemp(stateDir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), Path(stateDir)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing history: %w", err)
	}
	return nil
}

// Filter selects entries for display.
type Filter struct {
	Command string
	// Limit keeps the newest N entries; 0 keeps all.
	Limit int
}

// Select returns matching entries, newest first.
func (h *HistoryFile) Select(f Filter) []HistoryEntry {
	var out []HistoryEntry
	for i := len(h.Entries) - 1; i >= 0; i-- {
		e := h.Entries[i]
		if f.Command != "" && e.Command != f.Command {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// ClearHistory removes the history file. A missing file is not an error.
func ClearHistory(stateDir string) error {
	if err := os.Remove(Path(stateDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}
