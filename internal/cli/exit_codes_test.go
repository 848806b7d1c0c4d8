package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":             {err: nil, want: ExitSuccess},
		"plain error":     {err: errors.New("boom"), want: ExitRuntimeError},
		"argument":        {err: cerrors.MissingDescription(), want: ExitInvalidArguments},
		"configuration":   {err: cerrors.InvalidConfigValue("max_parallel", "must be at least 1"), want: ExitInvalidConfig},
		"prerequisite":    {err: cerrors.GeneratorNotFound("agent {{PROMPT}}", errors.New("not in PATH")), want: ExitMissingDependencies},
		"not found":       {err: cerrors.ExecutionNotFound("abc"), want: ExitNotFound},
		"wrapped cli":     {err: fmt.Errorf("outer: %w", cerrors.ExecutionNotFound("abc")), want: ExitNotFound},
		"deadline":        {err: fmt.Errorf("run: %w", context.DeadlineExceeded), want: ExitTimeout},
		"pinned code":     {err: withExitCode(ExitWorkflowFailed, cerrors.WorkflowFailed("abc", errors.New("x"))), want: ExitWorkflowFailed},
		"pinned over cli": {err: withExitCode(ExitTimeout, cerrors.ExecutionNotFound("abc")), want: ExitTimeout},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestWithExitCode(t *testing.T) {
	t.Parallel()

	assert.NoError(t, withExitCode(ExitTimeout, nil))

	inner := cerrors.ExecutionNotFound("abc")
	err := withExitCode(ExitWorkflowFailed, inner)
	assert.Equal(t, inner.Error(), err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Same(t, inner, cerrors.AsCLIError(err))
}
