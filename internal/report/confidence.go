package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dance.motion/internal/fsutil"
	"github.com/banshee-data/dance.motion/internal/pose"
)

// ConfidenceChart renders an HTML page charting each frame's detection
// confidence (minimum landmark visibility) and mean visibility.
func ConfidenceChart(seq pose.Sequence, title string) ([]byte, error) {
	if len(seq) == 0 {
		return nil, ErrNoData
	}
	x := make([]string, len(seq))
	minVis := make([]opts.LineData, len(seq))
	meanVis := make([]opts.LineData, len(seq))
	for i := range seq {
		x[i] = strconv.Itoa(seq[i].FrameIndex)
		minVis[i] = opts.LineData{Value: seq[i].DetectionConfidence}
		meanVis[i] = opts.LineData{Value: seq[i].MeanVisibility()}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Detection Confidence", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detection Confidence", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Visibility", Min: 0, Max: 1}),
	)
	line.SetXAxis(x).
		AddSeries("min visibility", minVis).
		AddSeries("mean visibility", meanVis)

	page := components.NewPage()
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render confidence chart: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfidenceChart renders the confidence chart and writes it
// atomically to path.
func WriteConfidenceChart(fsys fsutil.FileSystem, seq pose.Sequence, title, path string) error {
	html, err := ConfidenceChart(seq, title)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(fsys, path, html, 0o644); err != nil {
		return fmt.Errorf("write confidence chart: %w", err)
	}
	logf("confidence chart saved: %s", path)
	return nil
}
