package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pose"
)

var logf = monitoring.Prefixed("[source] ")

// ErrMalformed is returned for detections that violate the document
// contract.
var ErrMalformed = errors.New("malformed detections")

// VideoInfo describes the video the detections were taken from.
type VideoInfo struct {
	Path       string
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}

// Detection is one frame's landmarks in pixel coordinates.
type Detection struct {
	FrameIndex int
	Timestamp  float64
	Landmarks  []pose.Landmark
}

// Source yields detections in ascending frame order. Next returns io.EOF
// after the last detection.
type Source interface {
	Info() VideoInfo
	Next() (Detection, error)
}

type document struct {
	Video *struct {
		Path       string  `json:"path"`
		FrameCount int     `json:"frame_count"`
		FPS        float64 `json:"fps"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
	} `json:"video"`
	Frames []documentFrame `json:"frames"`
}

type documentFrame struct {
	FrameIndex *int               `json:"frame_index"`
	Landmarks  []documentLandmark `json:"landmarks"`
}

type documentLandmark struct {
	Index      *int    `json:"index,omitempty"`
	Name       string  `json:"name,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// DetectionsFile is a Source backed by a fully validated detections
// document.
type DetectionsFile struct {
	info       VideoInfo
	detections []Detection
	pos        int
}

// OpenDetectionsFile reads and validates a detections document from disk.
func OpenDetectionsFile(path string) (*DetectionsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections: %w", err)
	}
	defer f.Close()
	src, err := ReadDetections(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if src.info.Path == "" {
		src.info.Path = path
	}
	return src, nil
}

// ReadDetections decodes a detections document. Normalised coordinates are
// scaled to pixels as x*width, y*height and z*width.
func ReadDetections(r io.Reader) (*DetectionsFile, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	if doc.Video == nil {
		return nil, fmt.Errorf("%w: missing video block", ErrMalformed)
	}
	v := doc.Video
	if v.FPS <= 0 || math.IsNaN(v.FPS) || math.IsInf(v.FPS, 0) {
		return nil, fmt.Errorf("%w: fps must be positive, got %g", ErrMalformed, v.FPS)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrMalformed, v.Width, v.Height)
	}
	if v.FrameCount < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrMalformed, v.FrameCount)
	}

	src := &DetectionsFile{
		info: VideoInfo{
			Path:       v.Path,
			FrameCount: v.FrameCount,
			FPS:        v.FPS,
			Width:      v.Width,
			Height:     v.Height,
		},
		detections: make([]Detection, 0, len(doc.Frames)),
	}

	last := -1
	for i, df := range doc.Frames {
		if df.FrameIndex == nil {
			return nil, fmt.Errorf("%w: frames[%d] has no frame_index", ErrMalformed, i)
		}
		idx := *df.FrameIndex
		if idx <= last {
			return nil, fmt.Errorf("%w: frame_index %d follows %d", ErrMalformed, idx, last)
		}
		last = idx

		det := Detection{
			FrameIndex: idx,
			Timestamp:  float64(idx) / v.FPS,
			Landmarks:  make([]pose.Landmark, 0, len(df.Landmarks)),
		}
		seen := make(map[string]struct{}, len(df.Landmarks))
		for j, dl := range df.Landmarks {
			lm, err := convert(dl, idx, v.Width, v.Height)
			if err != nil {
				return nil, fmt.Errorf("frames[%d].landmarks[%d]: %w", i, j, err)
			}
			if _, dup := seen[lm.Name]; dup {
				return nil, fmt.Errorf("%w: frame %d repeats landmark %s", ErrMalformed, idx, lm.Name)
			}
			seen[lm.Name] = struct{}{}
			det.Landmarks = append(det.Landmarks, lm)
		}
		src.detections = append(src.detections, det)
	}
	if last >= src.info.FrameCount {
		logf("frame_count %d raised to %d to cover detections", src.info.FrameCount, last+1)
		src.info.FrameCount = last + 1
	}
	return src, nil
}

func convert(dl documentLandmark, frameIndex, width, height int) (pose.Landmark, error) {
	name := dl.Name
	if name == "" {
		if dl.Index == nil {
			return pose.Landmark{}, fmt.Errorf("%w: landmark needs index or name", ErrMalformed)
		}
		name = pose.LandmarkName(*dl.Index)
	}
	if dl.Visibility < 0 || dl.Visibility > 1 || math.IsNaN(dl.Visibility) {
		return pose.Landmark{}, fmt.Errorf("%w: %s visibility %g outside [0, 1]", ErrMalformed, name, dl.Visibility)
	}
	for _, c := range []float64{dl.X, dl.Y, dl.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return pose.Landmark{}, fmt.Errorf("%w: %s has non-finite coordinate", ErrMalformed, name)
		}
	}
	return pose.Landmark{
		Name:       name,
		X:          dl.X * float64(width),
		Y:          dl.Y * float64(height),
		Z:          dl.Z * float64(width),
		Visibility: dl.Visibility,
		FrameIndex: frameIndex,
	}, nil
}

// Info describes the source video.
func (s *DetectionsFile) Info() VideoInfo { return s.info }

// Next returns the next detection or io.EOF.
func (s *DetectionsFile) Next() (Detection, error) {
	if s.pos >= len(s.detections) {
		return Detection{}, io.EOF
	}
	d := s.detections[s.pos]
	s.pos++
	return d, nil
}

// ProgressFunc receives the number of frames ingested so far and the total.
type ProgressFunc func(done, total int)

// Collect drains src into a gap layout with one slot per video frame.
// Detections without landmarks leave their slot empty. The context is
// checked between detections.
func Collect(ctx context.Context, src Source, progress ProgressFunc) ([]*pose.Frame, error) {
	info := src.Info()
	frames := make([]*pose.Frame, info.FrameCount)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		det, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read detection: %w", err)
		}
		if det.FrameIndex < 0 {
			return nil, fmt.Errorf("%w: negative frame index %d", ErrMalformed, det.FrameIndex)
		}
		for det.FrameIndex >= len(frames) {
			frames = append(frames, nil)
		}
		if len(det.Landmarks) > 0 {
			f := pose.NewFrame(det.FrameIndex, det.Timestamp, det.Landmarks, info.Width, info.Height)
			frames[det.FrameIndex] = &f
		}
		if progress != nil {
			progress(det.FrameIndex+1, len(frames))
		}
	}
	if progress != nil {
		progress(len(frames), len(frames))
	}
	detected := 0
	for _, f := range frames {
		if f != nil {
			detected++
		}
	}
	logf("collected %d detected frames of %d", detected, len(frames))
	return frames, nil
}
