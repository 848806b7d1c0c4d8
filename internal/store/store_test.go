package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "appgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshot(id string, status execution.Status, created, updated time.Time) execution.Snapshot {
	return execution.Snapshot{
		ID:              id,
		Requirements:    execution.Requirements{Description: "app " + id, ProjectType: "web_app"},
		Status:          status,
		Stage:           stage.ArchitectureDesign.String(),
		ProgressPercent: 17,
		StagesCompleted: []stage.Stage{stage.RequirementsAnalysis},
		StagesFailed:    []stage.Stage{},
		Errors:          []string{},
		Artifacts: map[string]execution.Artifact{
			execution.ArtifactRequirementsDoc: {
				Name:    execution.ArtifactRequirementsDoc,
				Stage:   stage.RequirementsAnalysis,
				Content: "# req",
			},
		},
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func TestOpen_IdempotentMigration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "appgen.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, path, s2.Path())
}

func TestStore_SaveGet(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, snapshot("a", execution.StatusRunning, now, now)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, execution.StatusRunning, got.Status)
	assert.Equal(t, []stage.Stage{stage.RequirementsAnalysis}, got.StagesCompleted)
	assert.Equal(t, stage.RequirementsAnalysis, got.Artifacts[execution.ArtifactRequirementsDoc].Stage)
	assert.True(t, got.CreatedAt.Equal(now))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveNeverRegresses(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	created := time.Now()

	require.NoError(t, s.Save(ctx, snapshot("a", execution.StatusRunning, created, created)))
	require.NoError(t, s.Save(ctx, snapshot("a", execution.StatusCompleted, created, created.Add(2*time.Second))))
	require.NoError(t, s.Save(ctx, snapshot("a", execution.StatusRunning, created, created.Add(time.Second))))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, got.Status)
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Save(ctx, snapshot("old", execution.StatusCompleted, base, base)))
	require.NoError(t, s.Save(ctx, snapshot("mid", execution.StatusFailed, base.Add(time.Second), base)))
	require.NoError(t, s.Save(ctx, snapshot("new", execution.StatusCompleted, base.Add(2*time.Second), base)))

	tests := map[string]struct {
		filter Filter
		want   []string
	}{
		"all newest first":  {want: []string{"new", "mid", "old"}},
		"limit":             {filter: Filter{Limit: 2}, want: []string{"new", "mid"}},
		"by status":         {filter: Filter{Status: execution.StatusCompleted}, want: []string{"new", "old"}},
		"status no matches": {filter: Filter{Status: execution.StatusPending}, want: []string{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			list, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, snap := range list {
				ids = append(ids, snap.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	errs := make(chan error, 20)
	for i := range 20 {
		go func() {
			id := string(rune('a' + i))
			errs <- s.Save(ctx, snapshot(id, execution.StatusRunning, now, now))
		}()
	}
	for range 20 {
		require.NoError(t, <-errs)
	}

	list, err := s.List(ctx, Filter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, 20)
}
