// Command motiontrack cleans a pose-landmark detections file and writes the
// configured exports into a per-run output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/joho/godotenv"

	"github.com/banshee-data/dance.motion/internal/config"
	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pipeline"
	"github.com/banshee-data/dance.motion/internal/runs"
	"github.com/banshee-data/dance.motion/internal/source"
	"github.com/banshee-data/dance.motion/internal/version"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}}`

var (
	detections  = flag.String("detections", "", "Path to the landmark detections JSON file (required)")
	configPath  = flag.String("config", "", "Pipeline config JSON (default: config/pipeline.defaults.json)")
	outputDir   = flag.String("out", "", "Output root directory (env MOTIONTRACK_OUTPUT_DIR, default ./output)")
	dbPath      = flag.String("db", "", "Run ledger SQLite path (env MOTIONTRACK_DB; empty disables the ledger)")
	frameDir    = flag.String("frames", "", "Directory of extracted frame_NNNNNN images to annotate")
	compareRaw  = flag.Bool("compare-raw", false, "Draw the unsmoothed pose beneath the cleaned one on annotated frames")
	smoothing   = flag.String("smoothing", "", "Override smoothing method: none, kalman, savgol, combined")
	report      = flag.Bool("report", false, "Render trajectory plots and the confidence chart")
	listRuns    = flag.Int("list-runs", 0, "Print the N most recent runs from the ledger and exit")
	quiet       = flag.Bool("quiet", false, "Suppress log output and the progress bar")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	out := firstNonEmpty(*outputDir, os.Getenv("MOTIONTRACK_OUTPUT_DIR"), "output")
	ledgerPath := firstNonEmpty(*dbPath, os.Getenv("MOTIONTRACK_DB"))

	var ledger *runs.Store
	if ledgerPath != "" {
		var err error
		ledger, err = runs.Open(ledgerPath)
		if err != nil {
			log.Fatalf("Failed to open run ledger: %v", err)
		}
		defer ledger.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listRuns > 0 {
		if ledger == nil {
			log.Fatal("-list-runs requires -db or MOTIONTRACK_DB")
		}
		if err := printRuns(ctx, ledger, *listRuns); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	if *detections == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *smoothing != "" {
		cfg.SmoothingMethod = smoothing
	}
	if *report {
		cfg.ReportEnabled = report
	}

	src, err := source.OpenDetectionsFile(*detections)
	if err != nil {
		log.Fatalf("Failed to open detections: %v", err)
	}

	runner := pipeline.NewRunner(cfg)
	runner.Ledger = ledger

	var progress source.ProgressFunc
	var bar *pb.ProgressBar
	if !*quiet {
		bar = pb.ProgressBarTemplate(progressTemplate).Start(src.Info().FrameCount)
		bar.Set("prefix", "frames")
		progress = func(done, total int) {
			bar.SetTotal(int64(total))
			bar.SetCurrent(int64(done))
		}
	}

	res, err := runner.Run(ctx, src, pipeline.Options{OutputRoot: out, FrameDir: *frameDir, CompareRaw: *compareRaw}, progress)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Printf("run %s: %d/%d frames detected, %d frames written to %s\n",
		res.RunID, res.Detected, res.Total, len(res.Cleaned), res.RunDir)
	for kind, path := range res.Files {
		fmt.Printf("  %-24s %s\n", kind, path)
	}
}

func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.DefaultPipelineConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadPipelineConfig(path)
}

func printRuns(ctx context.Context, ledger *runs.Store, limit int) error {
	list, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range list {
		fmt.Printf("%s  %-9s  %-8s  %4d/%-4d  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Smoothing,
			r.DetectedFrames, r.FrameCount, r.VideoPath)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
