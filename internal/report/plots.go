package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pose"
)

var logf = monitoring.Prefixed("[report] ")

// ErrNoData is returned when a chart would have nothing to show.
var ErrNoData = errors.New("no data to plot")

// MinVisibility hides landmarks at or below this visibility from
// trajectory plots.
const MinVisibility = 0.5

// palette returns n distinct colours spread around the hue wheel.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

func addLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// TrajectoryPlot draws the image-plane path (x against y) of each named
// landmark and saves it as a PNG. Y is flipped so the plot matches the
// image orientation.
func TrajectoryPlot(seq pose.Sequence, landmarks []string, path string) error {
	p := plot.New()
	p.Title.Text = "Pose Landmark Trajectories"
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "-Y (px)"

	colors := palette(len(landmarks))
	drawn := 0
	for i, name := range landmarks {
		pts := make(plotter.XYs, 0, len(seq))
		for f := range seq {
			lm, ok := seq[f].Landmark(name)
			if !ok || lm.Visibility <= MinVisibility {
				continue
			}
			pts = append(pts, plotter.XY{X: lm.X, Y: -lm.Y})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("trajectory line %s: %w", name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
		drawn++
	}
	if drawn == 0 {
		logf("no visible samples for %v, trajectory plot skipped", landmarks)
		return ErrNoData
	}
	addLegend(p)

	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	logf("trajectory plot saved: %s", path)
	return nil
}

type axis struct {
	label string
	value func(pose.Landmark) float64
}

var axes = []axis{
	{"x", func(l pose.Landmark) float64 { return l.X }},
	{"y", func(l pose.Landmark) float64 { return l.Y }},
	{"z", func(l pose.Landmark) float64 { return l.Z }},
}

func series(seq pose.Sequence, name string, value func(pose.Landmark) float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(seq))
	for i := range seq {
		if lm, ok := seq[i].Landmark(name); ok {
			pts = append(pts, plotter.XY{X: float64(seq[i].FrameIndex), Y: value(lm)})
		}
	}
	return pts
}

// SmoothingPlot draws one landmark's x, y and z over frame index for the
// raw and cleaned sequences and saves it as a PNG. Raw series are dashed.
func SmoothingPlot(raw, cleaned pose.Sequence, landmark, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - raw vs cleaned", landmark)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Position (px)"

	colors := palette(len(axes))
	drawn := 0
	for i, ax := range axes {
		for _, variant := range []struct {
			label string
			seq   pose.Sequence
			dash  bool
		}{
			{"raw", raw, true},
			{"cleaned", cleaned, false},
		} {
			pts := series(variant.seq, landmark, ax.value)
			if len(pts) == 0 {
				continue
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("%s %s line: %w", variant.label, ax.label, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			if variant.dash {
				line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			}
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%s %s", ax.label, variant.label), line)
			drawn++
		}
	}
	if drawn == 0 {
		logf("%s absent from both sequences, smoothing plot skipped", landmark)
		return ErrNoData
	}
	addLegend(p)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save smoothing plot: %w", err)
	}
	logf("smoothing plot saved: %s", path)
	return nil
}
