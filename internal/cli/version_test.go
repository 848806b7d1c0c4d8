package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ariel-frischer/appgen/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	isolate(t)

	tests := map[string]struct {
		args  []string
		check func(t *testing.T, out string)
	}{
		"default": {
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "appgen")
				assert.Contains(t, out, "platform:")
			},
		},
		"plain": {
			args: []string{"--plain"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Get().String()+"\n", out)
			},
		},
		"json": {
			args: []string{"--json"},
			check: func(t *testing.T, out string) {
				var info version.Info
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, version.Version, info.Version)
				assert.NotEmpty(t, info.GoVersion)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			out, _, err := executeCommand(t, append([]string{"version"}, tt.args...)...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestSauceCmd(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "sauce")
	require.NoError(t, err)
	assert.Equal(t, SourceURL+"\n", out)
	assert.True(t, sauceCmd.Hidden)
	assert.Contains(t, sauceCmd.Short, "source")
}

func TestStagesCmd(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "stages")
	require.NoError(t, err)
	assert.Contains(t, out, "requirements_analysis")
	assert.Contains(t, out, "planning (sequential)")
	assert.Contains(t, out, "critical")
}

func TestDoctorCmd(t *testing.T) {
	stateDir := isolate(t)
	artifacts := "artifacts_dir=" + filepath.Join(stateDir, "generated")

	out, _, err := executeCommand(t, "doctor", "--state-dir", stateDir, "--set", artifacts)
	require.NoError(t, err)
	assert.Contains(t, out, "Generator: built-in templates")
	assert.Contains(t, out, "Database")

	_, _, err = executeCommand(t, "doctor", "--state-dir", stateDir, "--set", artifacts, "--set", "http.addr=8080")
	require.Error(t, err)
	assert.Equal(t, ExitMissingDependencies, ExitCode(err))
}
