// Package pipeline wires a landmark source through gap filling, smoothing
// and export into a per-run output directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dance.motion/internal/config"
	"github.com/banshee-data/dance.motion/internal/export"
	"github.com/banshee-data/dance.motion/internal/fsutil"
	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/overlay"
	"github.com/banshee-data/dance.motion/internal/pose"
	"github.com/banshee-data/dance.motion/internal/report"
	"github.com/banshee-data/dance.motion/internal/runs"
	"github.com/banshee-data/dance.motion/internal/security"
	"github.com/banshee-data/dance.motion/internal/smoothing"
	"github.com/banshee-data/dance.motion/internal/source"
	"github.com/banshee-data/dance.motion/internal/timeutil"
)

var logf = monitoring.Prefixed("[pipeline] ")

// ErrNoPoses is returned when the source yields no frame with landmarks.
var ErrNoPoses = errors.New("no poses detected")

// Output file names inside a run directory.
const (
	FileJSON       = "pose_data.json"
	FileCSVWide    = "pose_data_wide.csv"
	FileCSVLong    = "pose_data_long.csv"
	FileRig        = "pose_data_rig.json"
	FileBVH        = "pose_data.bvh"
	FileStats      = "statistics.json"
	FileTrajectory = "trajectories.png"
	FileConfidence = "confidence.html"
	OverlayDir     = "overlay"
)

// Options are per-run inputs that are not part of the pipeline config.
type Options struct {
	// OutputRoot is the directory under which the run directory is made.
	OutputRoot string
	// FrameDir, when set, holds extracted frame images to annotate.
	FrameDir string
	// CompareRaw draws the unsmoothed pose beneath the cleaned one on
	// annotated frames.
	CompareRaw bool
}

// Result describes a finished run.
type Result struct {
	RunID    string
	RunDir   string
	Raw      pose.Sequence // detected frames in layout order, before gap filling
	Cleaned  pose.Sequence
	Stats    export.Statistics
	Files    map[string]string // output kind -> path
	Detected int
	Total    int
}

// Runner executes pipeline runs. A Runner holds no per-run state, so one
// may serve concurrent runs.
type Runner struct {
	Config   *config.PipelineConfig
	Exporter *export.Exporter
	Ledger   *runs.Store // optional
	Clock    timeutil.Clock
	NewID    func() string
}

// NewRunner returns a runner using cfg, or the defaults when cfg is nil.
func NewRunner(cfg *config.PipelineConfig) *Runner {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	return &Runner{
		Config:   cfg,
		Exporter: export.NewExporter(),
		Clock:    timeutil.RealClock{},
		NewID:    uuid.NewString,
	}
}

// Strategy builds the smoothing strategy described by the config.
func (r *Runner) Strategy() (smoothing.Strategy, error) {
	method, err := smoothing.ParseMethod(r.Config.GetSmoothingMethod())
	if err != nil {
		return smoothing.Strategy{}, err
	}
	return smoothing.Strategy{
		Method: method,
		Kalman: smoothing.KalmanParams{
			ProcessVariance:     r.Config.GetKalmanProcessVariance(),
			MeasurementVariance: r.Config.GetKalmanMeasurementVariance(),
		},
		SavGol: smoothing.SavGolParams{
			WindowLength: r.Config.GetSavGolWindowLength(),
			PolyOrder:    r.Config.GetSavGolPolyOrder(),
		},
	}, nil
}

// Run processes one source into a fresh run directory under
// opts.OutputRoot. progress, if non-nil, receives ingest progress.
func (r *Runner) Run(ctx context.Context, src source.Source, opts Options, progress source.ProgressFunc) (*Result, error) {
	if err := r.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	strategy, err := r.Strategy()
	if err != nil {
		return nil, err
	}
	interp, err := smoothing.ParseInterpolationMethod(r.Config.GetInterpolationMethod())
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: r.NewID(), Files: make(map[string]string)}
	res.RunDir = filepath.Join(opts.OutputRoot, res.RunID)
	if err := r.fs().MkdirAll(res.RunDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	info := src.Info()
	logf("run %s: %s -> %s", res.RunID, info.Path, res.RunDir)

	if r.Ledger != nil {
		if err := r.Ledger.StartRun(ctx, runs.Run{
			ID:            res.RunID,
			VideoPath:     info.Path,
			OutputDir:     res.RunDir,
			Smoothing:     strategy.Method.String(),
			Interpolation: r.interpolationLabel(interp),
			FPS:           info.FPS,
			StartedAt:     r.Clock.Now(),
		}); err != nil {
			return nil, err
		}
	}

	runErr := r.run(ctx, src, opts, progress, strategy, interp, res)

	if r.Ledger != nil {
		// Bookkeeping must land even when the run itself was cancelled.
		lctx := context.WithoutCancel(ctx)
		if err := r.Ledger.FinishRun(lctx, res.RunID, res.Total, res.Detected, r.Clock.Now(), runErr); err != nil {
			logf("run %s: ledger update failed: %v", res.RunID, err)
		}
		if runErr == nil {
			if err := r.Ledger.RecordLandmarkStats(lctx, res.RunID, res.Stats.Landmarks); err != nil {
				logf("run %s: ledger stats failed: %v", res.RunID, err)
			}
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

func (r *Runner) fs() fsutil.FileSystem {
	if r.Exporter == nil || r.Exporter.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.Exporter.FS
}

func (r *Runner) interpolationLabel(m smoothing.InterpolationMethod) string {
	if !r.Config.GetInterpolateGaps() {
		return "none"
	}
	return string(m)
}

func (r *Runner) run(ctx context.Context, src source.Source, opts Options, progress source.ProgressFunc,
	strategy smoothing.Strategy, interp smoothing.InterpolationMethod, res *Result) error {
	start := time.Now()

	frames, err := source.Collect(ctx, src, progress)
	if err != nil {
		return fmt.Errorf("collect detections: %w", err)
	}
	res.Total = len(frames)
	res.Raw = pose.Compact(frames)
	res.Detected = len(res.Raw)
	if res.Detected == 0 {
		return ErrNoPoses
	}

	seq := res.Raw
	if r.Config.GetInterpolateGaps() {
		if seq, err = smoothing.Interpolate(frames, interp); err != nil {
			return fmt.Errorf("interpolate gaps: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// A fresh engine keeps filter state from leaking between runs.
	engine := smoothing.NewEngine()
	cleaned, err := engine.Apply(seq, strategy)
	if err != nil {
		return fmt.Errorf("smooth (%s): %w", strategy.Method, err)
	}
	res.Cleaned = cleaned
	res.Stats = export.ComputeStatistics(cleaned)

	if err := r.writeExports(res, src.Info().FPS); err != nil {
		return err
	}
	if r.Config.GetReportEnabled() {
		r.writeReport(res, src.Info().Path)
	}
	if opts.FrameDir != "" {
		dir := filepath.Join(res.RunDir, OverlayDir)
		var raw pose.Sequence
		if opts.CompareRaw {
			raw = res.Raw
		}
		n, err := overlay.AnnotateComparisonDir(ctx, opts.FrameDir, dir, raw, cleaned, overlay.DefaultStyle())
		if err != nil {
			return fmt.Errorf("annotate frames: %w", err)
		}
		res.Files["overlay"] = dir
		logf("run %s: annotated %d frames", res.RunID, n)
	}

	logf("run %s: %d/%d frames detected, %d cleaned in %s",
		res.RunID, res.Detected, res.Total, len(cleaned), time.Since(start).Round(time.Millisecond))
	return nil
}

func (r *Runner) outputPath(res *Result, name string) (string, error) {
	return security.OutputPath(res.RunDir, name)
}

func (r *Runner) writeExports(res *Result, videoFPS float64) error {
	fps := r.Config.GetAnimationFPS()
	if fps <= 0 {
		fps = videoFPS
	}
	for _, format := range r.Config.GetExportFormats() {
		var (
			name  string
			write func(path string) error
		)
		switch format {
		case config.FormatJSON:
			name = FileJSON
			write = func(p string) error {
				return r.Exporter.ExportJSON(res.Cleaned, p, export.JSONOptions{
					IncludeMetadata: r.Config.GetJSONIncludeMetadata(),
					PrettyPrint:     r.Config.GetJSONPrettyPrint(),
				})
			}
		case config.FormatCSVWide:
			name = FileCSVWide
			write = func(p string) error { return r.Exporter.ExportCSV(res.Cleaned, p, export.CSVWide) }
		case config.FormatCSVLong:
			name = FileCSVLong
			write = func(p string) error { return r.Exporter.ExportCSV(res.Cleaned, p, export.CSVLong) }
		case config.FormatRig:
			name = FileRig
			write = func(p string) error {
				return r.Exporter.ExportRig(res.Cleaned, p, export.RigOptions{RigType: r.Config.GetRigType(), FPS: fps})
			}
		case config.FormatBVH:
			name = FileBVH
			write = func(p string) error { return r.Exporter.ExportBVH(res.Cleaned, p, fps) }
		case config.FormatStats:
			name = FileStats
			write = func(p string) error { return r.Exporter.ExportStatistics(res.Cleaned, p) }
		default:
			return fmt.Errorf("unknown export format %q", format)
		}
		path, err := r.outputPath(res, name)
		if err != nil {
			return err
		}
		if err := write(path); err != nil {
			return err
		}
		res.Files[format] = path
	}
	return nil
}

// writeReport renders the diagnostic charts. Report failures are logged
// and do not fail the run.
func (r *Runner) writeReport(res *Result, title string) {
	landmarks := r.Config.GetReportLandmarks()

	if path, err := r.outputPath(res, FileTrajectory); err == nil {
		if err := report.TrajectoryPlot(res.Cleaned, landmarks, path); err == nil {
			res.Files["trajectory_plot"] = path
		} else {
			logf("run %s: trajectory plot: %v", res.RunID, err)
		}
	}
	for _, name := range landmarks {
		path, err := r.outputPath(res, "smoothing_"+name+".png")
		if err != nil {
			continue
		}
		if err := report.SmoothingPlot(res.Raw, res.Cleaned, name, path); err == nil {
			res.Files["smoothing_plot_"+name] = path
		} else {
			logf("run %s: smoothing plot %s: %v", res.RunID, name, err)
		}
	}
	if path, err := r.outputPath(res, FileConfidence); err == nil {
		if err := report.WriteConfidenceChart(r.fs(), res.Cleaned, title, path); err == nil {
			res.Files["confidence_chart"] = path
		} else {
			logf("run %s: confidence chart: %v", res.RunID, err)
		}
	}
}
