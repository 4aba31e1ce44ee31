package runs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dance.motion/internal/export"
	"github.com/banshee-data/dance.motion/internal/monitoring"
)

func init() { monitoring.SetLogger(nil) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var t0 = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func TestOpenAppliesMigrations(t *testing.T) {
	s := newTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"pipeline_runs", "run_landmark_stats"} {
		var name string
		err := s.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	// A second MigrateUp is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.StartRun(context.Background(), Run{ID: "a", StartedAt: t0}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	r, err := s.GetRun(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, Run{
		ID:            "run-1",
		VideoPath:     "clip.mp4",
		OutputDir:     "/out/run-1",
		Smoothing:     "combined",
		Interpolation: "linear",
		FPS:           30,
		StartedAt:     t0,
	}))

	r, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Nil(t, r.FinishedAt)
	assert.True(t, t0.Equal(r.StartedAt))

	require.NoError(t, s.FinishRun(ctx, "run-1", 90, 85, t0.Add(time.Minute), nil))
	r, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 90, r.FrameCount)
	assert.Equal(t, 85, r.DetectedFrames)
	require.NotNil(t, r.FinishedAt)
	assert.True(t, t0.Add(time.Minute).Equal(*r.FinishedAt))
}

func TestFinishRunFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.StartRun(ctx, Run{ID: "x", StartedAt: t0}))
	require.NoError(t, s.FinishRun(ctx, "x", 0, 0, t0, errors.New("disk full")))

	r, err := s.GetRun(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "disk full", r.Error)
}

func TestMissingRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "nope", 0, 0, t0, nil), ErrNotFound)
	assert.Error(t, s.StartRun(ctx, Run{}))
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.StartRun(ctx, Run{ID: id, StartedAt: t0.Add(time.Duration(i) * time.Hour)}))
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)

	two, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestRecordLandmarkStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.StartRun(ctx, Run{ID: "r", StartedAt: t0}))

	stats := map[string]export.LandmarkStats{
		"NOSE": {
			Visibility: export.VisibilityStats{Mean: 0.9, Std: 0.05, DetectionRate: 1},
			Position:   export.PositionStats{MovementDistance: 12.5},
		},
		"LEFT_WRIST": {
			Visibility: export.VisibilityStats{Mean: 0.4, Std: 0.2, DetectionRate: 0.25},
		},
	}
	require.NoError(t, s.RecordLandmarkStats(ctx, "r", stats))

	rows, err := s.LandmarkSummaries(ctx, "r")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LEFT_WRIST", rows[0].Landmark)
	assert.Equal(t, LandmarkSummary{
		Landmark:         "NOSE",
		VisibilityMean:   0.9,
		VisibilityStd:    0.05,
		DetectionRate:    1,
		MovementDistance: 12.5,
	}, rows[1])

	// Re-recording replaces the previous rows.
	require.NoError(t, s.RecordLandmarkStats(ctx, "r", map[string]export.LandmarkStats{"NOSE": {}}))
	rows, err = s.LandmarkSummaries(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRecordLandmarkStatsUnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordLandmarkStats(context.Background(), "ghost", map[string]export.LandmarkStats{"NOSE": {}})
	assert.Error(t, err)
}
