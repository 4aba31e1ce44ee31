package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/dance.motion/internal/export"
)

// ErrNotFound is returned when a run id has no ledger row.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID             string
	VideoPath      string
	OutputDir      string
	Status         string
	Error          string
	Smoothing      string
	Interpolation  string
	FrameCount     int
	DetectedFrames int
	FPS            float64
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// LandmarkSummary is the ledger's condensed form of export.LandmarkStats.
type LandmarkSummary struct {
	Landmark         string
	VisibilityMean   float64
	VisibilityStd    float64
	DetectionRate    float64
	MovementDistance float64
}

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	_, err := s.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			run_id, video_path, output_dir, status, error, smoothing, interpolation,
			frame_count, detected_frames, fps, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.VideoPath, r.OutputDir, r.Status, r.Error, r.Smoothing, r.Interpolation,
		r.FrameCount, r.DetectedFrames, r.FPS, r.StartedAt.UTC(), nullTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run. A non-nil runErr marks it
// failed.
func (s *Store) FinishRun(ctx context.Context, id string, frameCount, detected int, finishedAt time.Time, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, error = ?, frame_count = ?, detected_frames = ?, finished_at = ?
		WHERE run_id = ?`,
		status, msg, frameCount, detected, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	logf("run %s %s", id, status)
	return nil
}

// RecordLandmarkStats stores one summary row per landmark, replacing any
// rows already recorded for the run.
func (s *Store) RecordLandmarkStats(ctx context.Context, id string, stats map[string]export.LandmarkStats) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin landmark stats tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_landmark_stats WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear landmark stats for %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_landmark_stats (
			run_id, landmark, visibility_mean, visibility_std, detection_rate, movement_distance
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare landmark stats insert: %w", err)
	}
	defer stmt.Close()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ls := stats[name]
		if _, err := stmt.ExecContext(ctx, id, name,
			ls.Visibility.Mean, ls.Visibility.Std, ls.Visibility.DetectionRate,
			ls.Position.MovementDistance,
		); err != nil {
			return fmt.Errorf("insert landmark stats %s/%s: %w", id, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit landmark stats for %s: %w", id, err)
	}
	return nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.QueryContext(ctx, selectRun+` ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// LandmarkSummaries returns a run's per-landmark rows ordered by name.
func (s *Store) LandmarkSummaries(ctx context.Context, id string) ([]LandmarkSummary, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT landmark, visibility_mean, visibility_std, detection_rate, movement_distance
		FROM run_landmark_stats WHERE run_id = ? ORDER BY landmark`, id)
	if err != nil {
		return nil, fmt.Errorf("query landmark stats for %s: %w", id, err)
	}
	defer rows.Close()

	var out []LandmarkSummary
	for rows.Next() {
		var ls LandmarkSummary
		if err := rows.Scan(&ls.Landmark, &ls.VisibilityMean, &ls.VisibilityStd, &ls.DetectionRate, &ls.MovementDistance); err != nil {
			return nil, fmt.Errorf("scan landmark stats: %w", err)
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

const selectRun = `
	SELECT run_id, video_path, output_dir, status, error, smoothing, interpolation,
		frame_count, detected_frames, fps, started_at, finished_at
	FROM pipeline_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	if err := sc.Scan(&r.ID, &r.VideoPath, &r.OutputDir, &r.Status, &r.Error,
		&r.Smoothing, &r.Interpolation, &r.FrameCount, &r.DetectedFrames, &r.FPS,
		&r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
