package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	summary := &model.RunSummary{
		RunID:          run.ID,
		Status:         model.RunStatusPartial,
		FailedSources:  []string{"boj"},
		TotalCollected: 42,
		TotalNew:       7,
		TotalRelevant:  3,
		Sources: []model.SourceResult{
			{Source: "rss", Status: model.SourceOK, Collected: 42, New: 7},
			{Source: "boj", Status: model.SourceFailed, Error: "fetch failed"},
		},
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpdateRunSummary(ctx, run.ID, summary))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartial, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 7, got.Summary.TotalNew)
	assert.Equal(t, []string{"boj"}, got.Summary.FailedSources)
	require.Len(t, got.Summary.Sources, 2)
	assert.Equal(t, model.SourceFailed, got.Summary.Sources[1].Status)
}

func TestUpdateRunStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusOK))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusOK, got.Status)
	assert.Nil(t, got.Summary)
}

func TestUpdateUnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRunStatus(context.Background(), "no-such-run", model.RunStatusOK)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestListRunsFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx)
	require.NoError(t, err)
	second, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, first.ID, model.RunStatusFailed))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, first.ID, failed[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_ = second
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
