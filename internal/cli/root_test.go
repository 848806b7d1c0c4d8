package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// consecutive executions of the shared command tree do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// isolate points the user config and state at temp directories and returns
// the state dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	return filepath.Join(home, "state")
}

// executeCommand runs the root command with args and returns stdout, stderr
// and the error. Tests using it must not run in parallel.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Structure(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "appgen", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotEmpty(t, rootCmd.Example)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		shorthand string
	}{
		"config":    {shorthand: "c"},
		"debug":     {},
		"state-dir": {},
		"set":       {},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			flag := rootCmd.PersistentFlags().Lookup(name)
			require.NotNil(t, flag, "flag %s should exist", name)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
		})
	}
}

func TestRootCmd_SubcommandGroups(t *testing.T) {
	t.Parallel()

	want := map[string]string{
		"run":     GroupWorkflow,
		"serve":   GroupWorkflow,
		"status":  GroupInspect,
		"list":    GroupInspect,
		"logs":    GroupInspect,
		"stages":  GroupInspect,
		"history": GroupConfiguration,
		"config":  GroupConfiguration,
		"doctor":  GroupConfiguration,
	}

	got := make(map[string]string)
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = c.GroupID
	}
	for name, group := range want {
		assert.Equal(t, group, got[name], "command %s", name)
	}

	ids := make(map[string]bool)
	for _, g := range rootCmd.Groups() {
		ids[g.ID] = true
	}
	assert.True(t, ids[GroupWorkflow])
	assert.True(t, ids[GroupInspect])
	assert.True(t, ids[GroupConfiguration])
}

func TestRootCmd_Help(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Workflow Commands:")
	assert.Contains(t, out, "run")
}

func TestRootCmd_InvalidSetOverride(t *testing.T) {
	stateDir := isolate(t)

	tests := map[string]struct {
		set      string
		wantCode int
	}{
		"missing equals":   {set: "max_parallel", wantCode: ExitInvalidArguments},
		"unknown key":      {set: "nope=1", wantCode: ExitInvalidArguments},
		"wrong type":       {set: "max_parallel=lots", wantCode: ExitInvalidArguments},
		"out of range":     {set: "max_parallel=0", wantCode: ExitInvalidConfig},
		"bad enum":         {set: "generator.type=magic", wantCode: ExitInvalidArguments},
		"command no param": {set: "generator.type=command", wantCode: ExitInvalidConfig},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := executeCommand(t, "list", "--state-dir", stateDir, "--set", tt.set)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ExitCode(err))
		})
	}
}
