package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/history"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTechPreferences(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		values  []string
		want    map[string]string
		wantErr bool
	}{
		"none":           {values: nil, want: nil},
		"pairs":          {values: []string{"frontend=react", " backend = go "}, want: map[string]string{"frontend": "react", "backend": "go"}},
		"later wins":     {values: []string{"db=mysql", "db=postgres"}, want: map[string]string{"db": "postgres"}},
		"missing equals": {values: []string{"react"}, wantErr: true},
		"empty key":      {values: []string{"=react"}, wantErr: true},
		"empty value":    {values: []string{"frontend="}, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTechPreferences(tt.values)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ExitInvalidArguments, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// runJSON executes `appgen run ... --json` in an isolated state dir.
func runJSON(t *testing.T, stateDir string, args ...string) (execution.Snapshot, error) {
	t.Helper()
	full := append([]string{"run"}, args...)
	full = append(full, "--json", "--state-dir", stateDir,
		"--set", "artifacts_dir="+filepath.Join(stateDir, "generated"))
	out, _, err := executeCommand(t, full...)

	var snap execution.Snapshot
	if out != "" {
		require.NoError(t, json.Unmarshal([]byte(out), &snap), out)
	}
	return snap, err
}

func TestRunCmd_CompletesAndIsQueryable(t *testing.T) {
	stateDir := isolate(t)

	snap, err := runJSON(t, stateDir, "Task manager with teams",
		"--project-type", "web_app", "--feature", "due dates", "--tech", "backend=go")
	require.NoError(t, err)
	require.Equal(t, execution.StatusCompleted, snap.Status, "errors: %v", snap.Errors)
	assert.Equal(t, 100, snap.ProgressPercent)
	assert.Equal(t, []string{"due dates"}, snap.Requirements.Features)
	assert.Equal(t, "go", snap.Requirements.TechnologyPreferences["backend"])
	assert.NotEmpty(t, snap.Artifacts[execution.ArtifactRepositoryURL].Value())
	assert.FileExists(t, filepath.Join(stateDir, "generated", snap.ID, "requirements_doc.md"))

	out, _, err := executeCommand(t, "status", snap.ID, "--json", "--state-dir", stateDir)
	require.NoError(t, err)
	var view execution.StatusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, snap.ID, view.ID)
	assert.Equal(t, execution.StatusCompleted, view.Status)
	assert.Contains(t, view.StagesCompleted, stage.Completion.String())

	out, _, err = executeCommand(t, "list", "--json", "--state-dir", stateDir)
	require.NoError(t, err)
	var views []execution.StatusView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, snap.ID, views[0].ID)

	out, _, err = executeCommand(t, "logs", snap.ID, "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, out, "workflow_started")
	assert.Contains(t, out, "workflow_completed")

	hist, err := history.LoadHistory(stateDir)
	require.NoError(t, err)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "run", hist.Entries[0].Command)
	assert.Equal(t, snap.ID, hist.Entries[0].ExecutionID)
	assert.Equal(t, string(execution.StatusCompleted), hist.Entries[0].Status)
	assert.Equal(t, 0, hist.Entries[0].ExitCode)
}

func TestRunCmd_MaxStage(t *testing.T) {
	stateDir := isolate(t)

	tests := map[string]struct {
		maxStage      string
		wantCompleted []stage.Stage
		wantEarly     bool
		wantWarning   bool
	}{
		"stops after architecture": {
			maxStage:      "architecture_design",
			wantCompleted: []stage.Stage{stage.RequirementsAnalysis, stage.ArchitectureDesign},
			wantEarly:     true,
		},
		"unknown stage runs everything": {
			maxStage:    "launch_rocket",
			wantWarning: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			snap, err := runJSON(t, stateDir, "Recipe sharing site", "--max-stage", tt.maxStage)
			require.NoError(t, err)
			assert.Equal(t, execution.StatusCompleted, snap.Status)
			assert.Equal(t, tt.wantEarly, snap.EarlyStopped)
			if tt.wantCompleted != nil {
				assert.Equal(t, tt.wantCompleted, snap.StagesCompleted)
			}
			if tt.wantWarning {
				assert.True(t, strings.Contains(strings.Join(snap.Errors, "\n"), tt.maxStage),
					"errors should mention the unknown stage: %v", snap.Errors)
			}
		})
	}
}

func TestRunCmd_ArgumentErrors(t *testing.T) {
	stateDir := isolate(t)

	tests := map[string]struct {
		args []string
	}{
		"missing description": {args: []string{"run", "   "}},
		"bad tech flag":       {args: []string{"run", "Blog", "--tech", "react"}},
		"json with progress":  {args: []string{"run", "Blog", "--json", "--progress"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := executeCommand(t, append(tt.args, "--state-dir", stateDir)...)
			require.Error(t, err)
			assert.Equal(t, ExitInvalidArguments, ExitCode(err))
		})
	}
}

func TestStatusCmd_UnknownExecution(t *testing.T) {
	stateDir := isolate(t)

	_, _, err := executeCommand(t, "status", "does-not-exist", "--state-dir", stateDir)
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, ExitCode(err))
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestLogsCmd_MissingLog(t *testing.T) {
	stateDir := isolate(t)

	_, _, err := executeCommand(t, "logs", "nope", "--state-dir", stateDir)
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}
