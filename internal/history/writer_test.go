package history

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWriter_LogEntry(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		setupStore  func(t *testing.T, stateDir string)
		maxEntries  int
		wantEntries int
	}{
		"log entry to empty history": {
			setupStore:  func(t *testing.T, stateDir string) {},
			maxEntries:  500,
			wantEntries: 1,
		},
		"log entry to existing history": {
			setupStore: func(t *testing.T, stateDir string) {
				history := &HistoryFile{
					Entries: []HistoryEntry{
						{Timestamp: time.Now(), Command: "existing", ExitCode: 0, Duration: "1m"},
					},
				}
				require.NoError(t, SaveHistory(stateDir, history))
			},
			maxEntries:  500,
			wantEntries: 2,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stateDir := t.TempDir()
			tc.setupStore(t, stateDir)

			writer := NewWriter(stateDir, tc.maxEntries)
			entry := HistoryEntry{
				Timestamp: time.Now(),
				Command:     "run",
				ExecutionID: "exec-1",
				Status:      "completed",
				ExitCode:    0,
				Duration:    "30s",
			}
			writer.LogEntry(entry)

			// Verify entry was logged
			history, err := LoadHistory(stateDir)
			require.NoError(t, err)
			assert.Len(t, history.Entries, tc.wantEntries)
		})
	}
}

func TestHistoryWriter_Pruning(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		existingEntries int
		maxEntries      int
		wantEntries     int
		wantOldest      string // Command name of oldest remaining entry
	}{
		"no pruning needed": {
			existingEntries: 5,
			maxEntries:      10,
			wantEntries:     6, // 5 existing + 1 new
			wantOldest:      "cmd-0",
		},
		"prune oldest when max exceeded": {
			existingEntries: 10,
			maxEntries:      10,
			wantEntries:     10, // oldest removed, new added
			wantOldest:      "cmd-1",
		},
		"prune multiple when well over max": {
			existingEntries: 12,
			maxEntries:      10,
			wantEntries:     10,
			wantOldest:      "cmd-3",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stateDir := t.TempDir()

			// Create existing entries
			entries := make([]HistoryEntry, tc.existingEntries)
			for i := 0; i < tc.existingEntries; i++ {
				entries[i] = HistoryEntry{
					Timestamp: time.Now().Add(time.Duration(i) * time.Minute),
					Command:   "cmd-" + string(rune('0'+i)),
					ExitCode:  0,
					Duration:  "1m",
				}
			}
			history := &HistoryFile{Entries: entries}
			require.NoError(t, SaveHistory(stateDir, history))

			// Log new entry
			writer := NewWriter(stateDir, tc.maxEntries)
			writer.LogEntry(HistoryEntry{
				Timestamp: time.Now().Add(time.Hour),
				Command:   "new-cmd",
				ExitCode:  0,
				Duration:  "30s",
			})

			// Verify
			loaded, err := LoadHistory(stateDir)
			require.NoError(t, err)
			assert.Len(t, loaded.Entries, tc.wantEntries)

			// Verify oldest entry
			if len(loaded.Entries) > 0 {
				assert.Equal(t, tc.wantOldest, loaded.Entries[0].Command)
			}

			// Verify newest entry is our new one
			assert.Equal(t, "new-cmd", loaded.Entries[len(loaded.Entries)-1].Command)
		})
	}
}

func TestHistoryWriter_LogCommand(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	writer := NewWriter(stateDir, 500)

	writer.LogCommand("run", "exec-42", "failed", 1, 2*time.Minute+30*time.Second+400*time.Microsecond)

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)

	entry := history.Entries[0]
	assert.Equal(t, "run", entry.Command)
	assert.Equal(t, "exec-42", entry.ExecutionID)
	assert.Equal(t, "failed", entry.Status)
	assert.Equal(t, 1, entry.ExitCode)
	assert.Equal(t, "2m30s", entry.Duration)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestHistoryWriter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	writer := NewWriter(stateDir, 100)

	// Run multiple goroutines writing concurrently
	var wg sync.WaitGroup
	numWriters := 10
	entriesPerWriter := 5

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(writerID int) {
			defer wg.Done()
			for j := 0; j < entriesPerWriter; j++ {
				writer.LogEntry(HistoryEntry{
					Timestamp: time.Now(),
					Command:   "status",
					ExitCode:  0,
					Duration:  "1s",
				})
			}
		}(i)
	}

	wg.Wait()

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Len(t, history.Entries, numWriters*entriesPerWriter)
}

func TestHistoryWriter_NonFatalErrors(t *testing.T) {
	t.Parallel()

	// A regular file where the state directory should be.
	blocker := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var warnings bytes.Buffer
	writer := NewWriter(filepath.Join(blocker, "nested"), 500)
	writer.Warnings = &warnings

	writer.LogEntry(HistoryEntry{
		Timestamp: time.Now(),
		Command:   "run",
		ExitCode:  0,
		Duration:  "1s",
	})

	assert.Contains(t, warnings.String(), "failed to log history")
}

func TestLoadHistory_Corrupt(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(stateDir), []byte("entries: [unclosed"), 0o644))

	_, err := LoadHistory(stateDir)
	assert.ErrorContains(t, err, "parsing history")
}

func TestHistoryFile_Select(t *testing.T) {
	t.Parallel()

	h := &HistoryFile{Entries: []HistoryEntry{
		{Command: "run", ExecutionID: "a"},
		{Command: "status", ExecutionID: "a"},
		{Command: "run", ExecutionID: "b"},
		{Command: "run", ExecutionID: "c"},
	}}

	tests := map[string]struct {
		filter Filter
		want   []string
	}{
		"all newest first": {filter: Filter{}, want: []string{"c", "b", "a", "a"}},
		"by command":       {filter: Filter{Command: "run"}, want: []string{"c", "b", "a"}},
		"limited":          {filter: Filter{Command: "run", Limit: 2}, want: []string{"c", "b"}},
		"no match":         {filter: Filter{Command: "serve"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, e := range h.Select(tt.filter) {
				got = append(got, e.ExecutionID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	writer := NewWriter("/test/path", 100)

	assert.Equal(t, "/test/path", writer.StateDir)
	assert.Equal(t, 100, writer.MaxEntries)
}

func TestHistoryWriter_ZeroMaxEntries(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()

	// Zero max entries means unlimited
	writer := NewWriter(stateDir, 0)

	// Log 5 entries
	for i := 0; i < 5; i++ {
		writer.LogEntry(HistoryEntry{
			Timestamp: time.Now(),
			Command:   "test",
			ExitCode:  0,
			Duration:  "1s",
		})
	}

	// All should be retained
	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Len(t, history.Entries, 5)
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	NewWriter(stateDir, 10).LogCommand("run", "e1", "completed", 0, time.Second)
	require.FileExists(t, Path(stateDir))

	require.NoError(t, ClearHistory(stateDir))
	assert.NoFileExists(t, Path(stateDir))
	assert.NoError(t, ClearHistory(stateDir), "clearing twice is fine")
}
