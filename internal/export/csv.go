package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// CSVLayout selects the CSV row shape.
type CSVLayout int

const (
	// CSVWide writes one row per frame with four columns per landmark.
	CSVWide CSVLayout = iota
	// CSVLong writes one row per (frame, landmark) pair.
	CSVLong
)

func (l CSVLayout) String() string {
	if l == CSVLong {
		return "csv_long"
	}
	return "csv_wide"
}

var frameColumns = []string{"frame_index", "timestamp", "detection_confidence"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func frameCells(f *pose.Frame) []string {
	return []string{
		strconv.Itoa(f.FrameIndex),
		formatFloat(f.Timestamp),
		formatFloat(f.DetectionConfidence),
	}
}

// ExportCSV writes seq in the requested layout. An empty sequence produces a
// header-only file.
//
// Wide layout columns follow the first frame's landmark order; that order is
// canonical for the whole file. A landmark missing from a later frame gets
// empty position cells and zero visibility, and landmarks not in the first
// frame are not written.
func (e *Exporter) ExportCSV(seq pose.Sequence, path string, layout CSVLayout) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var rows [][]string
	switch layout {
	case CSVWide:
		rows = wideRows(seq)
	case CSVLong:
		rows = longRows(seq)
	default:
		return fmt.Errorf("unknown csv layout %d", layout)
	}
	if err := w.WriteAll(rows); err != nil {
		logf("%s encode failed: %v", layout, err)
		return fmt.Errorf("encode %s: %w", layout, err)
	}
	return e.write(layout.String(), path, buf.Bytes())
}

func wideRows(seq pose.Sequence) [][]string {
	header := append([]string(nil), frameColumns...)
	var names []string
	if len(seq) > 0 {
		for _, lm := range seq[0].Landmarks {
			names = append(names, lm.Name)
			header = append(header, lm.Name+"_x", lm.Name+"_y", lm.Name+"_z", lm.Name+"_visibility")
		}
	}

	rows := make([][]string, 0, len(seq)+1)
	rows = append(rows, header)
	for i := range seq {
		f := &seq[i]
		row := frameCells(f)
		for _, name := range names {
			if lm, ok := f.Landmark(name); ok {
				row = append(row, formatFloat(lm.X), formatFloat(lm.Y), formatFloat(lm.Z), formatFloat(lm.Visibility))
			} else {
				row = append(row, "", "", "", "0")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func longRows(seq pose.Sequence) [][]string {
	header := append(append([]string(nil), frameColumns...), "landmark_name", "x", "y", "z", "visibility")
	rows := [][]string{header}
	for i := range seq {
		f := &seq[i]
		for _, lm := range f.Landmarks {
			row := append(frameCells(f), lm.Name,
				formatFloat(lm.X), formatFloat(lm.Y), formatFloat(lm.Z), formatFloat(lm.Visibility))
			rows = append(rows, row)
		}
	}
	return rows
}
