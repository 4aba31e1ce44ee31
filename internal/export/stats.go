package export

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// VisibleThreshold is the visibility above which a landmark counts as
// detected for DetectionRate.
const VisibleThreshold = 0.5

// Statistics summarises a sequence.
type Statistics struct {
	General    GeneralStats             `json:"general"`
	Confidence SummaryStats             `json:"confidence"`
	Landmarks  map[string]LandmarkStats `json:"landmarks"`
}

type GeneralStats struct {
	TotalFrames     int        `json:"total_frames"`
	Duration        float64    `json:"duration"`
	AvgFPS          float64    `json:"avg_fps"`
	ImageDimensions Dimensions `json:"image_dimensions"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SummaryStats holds the population mean, standard deviation and extremes.
type SummaryStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

type LandmarkStats struct {
	Visibility VisibilityStats `json:"visibility"`
	Position   PositionStats   `json:"position"`
}

type VisibilityStats struct {
	Mean          float64 `json:"mean"`
	Std           float64 `json:"std"`
	DetectionRate float64 `json:"detection_rate"`
}

// PositionStats holds per-axis [min, max] ranges and the summed Euclidean
// displacement between consecutive appearances.
type PositionStats struct {
	XRange           [2]float64 `json:"x_range"`
	YRange           [2]float64 `json:"y_range"`
	ZRange           [2]float64 `json:"z_range"`
	MovementDistance float64    `json:"movement_distance"`
}

func summarise(x []float64) SummaryStats {
	if len(x) == 0 {
		return SummaryStats{}
	}
	mean, variance := stat.PopMeanVariance(x, nil)
	return SummaryStats{
		Mean: mean,
		Std:  math.Sqrt(variance),
		Min:  floats.Min(x),
		Max:  floats.Max(x),
	}
}

func span(x []float64) [2]float64 {
	return [2]float64{floats.Min(x), floats.Max(x)}
}

// pathLength sums the distance between consecutive points.
func pathLength(xs, ys, zs []float64) float64 {
	var total float64
	for i := 1; i < len(xs); i++ {
		total += floats.Distance(
			[]float64{xs[i], ys[i], zs[i]},
			[]float64{xs[i-1], ys[i-1], zs[i-1]},
			2,
		)
	}
	return total
}

type landmarkSamples struct {
	vis, x, y, z []float64
}

// ComputeStatistics aggregates seq. Every landmark name seen in any frame
// is reported; a landmark absent from a frame contributes no sample for that
// frame. An empty sequence yields all-zero statistics.
func ComputeStatistics(seq pose.Sequence) Statistics {
	st := Statistics{Landmarks: map[string]LandmarkStats{}}
	if len(seq) == 0 {
		return st
	}

	duration := seq.Duration()
	st.General = GeneralStats{
		TotalFrames: len(seq),
		Duration:    duration,
		AvgFPS:      averageFPS(len(seq), duration),
		ImageDimensions: Dimensions{
			Width:  seq[0].ImageWidth,
			Height: seq[0].ImageHeight,
		},
	}

	conf := make([]float64, len(seq))
	samples := make(map[string]*landmarkSamples)
	for i := range seq {
		conf[i] = seq[i].DetectionConfidence
		for _, lm := range seq[i].Landmarks {
			s, ok := samples[lm.Name]
			if !ok {
				s = &landmarkSamples{}
				samples[lm.Name] = s
			}
			s.vis = append(s.vis, lm.Visibility)
			s.x = append(s.x, lm.X)
			s.y = append(s.y, lm.Y)
			s.z = append(s.z, lm.Z)
		}
	}
	st.Confidence = summarise(conf)

	for name, s := range samples {
		vis := summarise(s.vis)
		var detected float64
		for _, v := range s.vis {
			if v > VisibleThreshold {
				detected++
			}
		}
		st.Landmarks[name] = LandmarkStats{
			Visibility: VisibilityStats{
				Mean:          vis.Mean,
				Std:           vis.Std,
				DetectionRate: detected / float64(len(s.vis)),
			},
			Position: PositionStats{
				XRange:           span(s.x),
				YRange:           span(s.y),
				ZRange:           span(s.z),
				MovementDistance: pathLength(s.x, s.y, s.z),
			},
		}
	}
	return st
}

// ExportStatistics computes statistics for seq and writes them as JSON.
func (e *Exporter) ExportStatistics(seq pose.Sequence, path string) error {
	if len(seq) == 0 {
		logf("no pose data, writing empty statistics to %s", path)
	}
	data, err := encodeJSON(ComputeStatistics(seq), true)
	if err != nil {
		logf("statistics encode failed: %v", err)
		return fmt.Errorf("encode statistics: %w", err)
	}
	return e.write("statistics", path, data)
}
