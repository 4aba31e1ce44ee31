package export

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// Image dimensions assumed by LoadJSON when the file has no metadata.
const (
	DefaultImageWidth  = 1920
	DefaultImageHeight = 1080
)

// JSONOptions controls ExportJSON.
type JSONOptions struct {
	IncludeMetadata bool
	PrettyPrint     bool
}

// DefaultJSONOptions includes metadata and indents the output.
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{IncludeMetadata: true, PrettyPrint: true}
}

type jsonDocument struct {
	FormatVersion   string        `json:"format_version"`
	ExportTimestamp string        `json:"export_timestamp"`
	TotalFrames     int           `json:"total_frames"`
	Metadata        *jsonMetadata `json:"metadata,omitempty"`
	PoseData        []jsonFrame   `json:"pose_data"`
}

type jsonMetadata struct {
	ImageWidth    int     `json:"image_width"`
	ImageHeight   int     `json:"image_height"`
	LandmarkCount int     `json:"landmark_count"`
	Duration      float64 `json:"duration"`
	FPS           float64 `json:"fps"`
}

type jsonFrame struct {
	FrameIndex          int            `json:"frame_index"`
	Timestamp           float64        `json:"timestamp"`
	DetectionConfidence float64        `json:"detection_confidence"`
	Landmarks           []jsonLandmark `json:"landmarks"`
}

type jsonLandmark struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// ExportJSON writes seq as a generic pose document. Metadata describes the
// first frame's dimensions and landmark count and is omitted for an empty
// sequence.
func (e *Exporter) ExportJSON(seq pose.Sequence, path string, opts JSONOptions) error {
	doc := jsonDocument{
		FormatVersion:   FormatVersion,
		ExportTimestamp: e.timestamp(),
		TotalFrames:     len(seq),
		PoseData:        make([]jsonFrame, 0, len(seq)),
	}
	if opts.IncludeMetadata && len(seq) > 0 {
		duration := seq.Duration()
		doc.Metadata = &jsonMetadata{
			ImageWidth:    seq[0].ImageWidth,
			ImageHeight:   seq[0].ImageHeight,
			LandmarkCount: len(seq[0].Landmarks),
			Duration:      duration,
			FPS:           averageFPS(len(seq), duration),
		}
	}
	for _, f := range seq {
		jf := jsonFrame{
			FrameIndex:          f.FrameIndex,
			Timestamp:           f.Timestamp,
			DetectionConfidence: f.DetectionConfidence,
			Landmarks:           make([]jsonLandmark, 0, len(f.Landmarks)),
		}
		for _, lm := range f.Landmarks {
			jf.Landmarks = append(jf.Landmarks, jsonLandmark{
				Name: lm.Name, X: lm.X, Y: lm.Y, Z: lm.Z, Visibility: lm.Visibility,
			})
		}
		doc.PoseData = append(doc.PoseData, jf)
	}

	data, err := encodeJSON(doc, opts.PrettyPrint)
	if err != nil {
		logf("json encode failed: %v", err)
		return fmt.Errorf("encode json: %w", err)
	}
	return e.write("json", path, data)
}

// Load-side mirrors use pointers so missing required fields are detected.
type loadDocument struct {
	Metadata *struct {
		ImageWidth  *int `json:"image_width"`
		ImageHeight *int `json:"image_height"`
	} `json:"metadata"`
	PoseData []loadFrame `json:"pose_data"`
}

type loadFrame struct {
	FrameIndex          *int           `json:"frame_index"`
	Timestamp           *float64       `json:"timestamp"`
	DetectionConfidence *float64       `json:"detection_confidence"`
	Landmarks           []loadLandmark `json:"landmarks"`
}

type loadLandmark struct {
	Name       *string  `json:"name"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Z          *float64 `json:"z"`
	Visibility *float64 `json:"visibility"`
}

// LoadJSON reads a document written by ExportJSON. Image dimensions come
// from the metadata block and default to 1920x1080 when it is absent.
func (e *Exporter) LoadJSON(path string) (pose.Sequence, error) {
	data, err := e.fs().ReadFile(path)
	if err != nil {
		logf("load %s failed: %v", path, err)
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	seq, err := decodeJSON(data)
	if err != nil {
		logf("load %s failed: %v", path, err)
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	logf("loaded %d frames from %s", len(seq), path)
	return seq, nil
}

func decodeJSON(data []byte) (pose.Sequence, error) {
	var doc loadDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	width, height := DefaultImageWidth, DefaultImageHeight
	if doc.Metadata != nil {
		if doc.Metadata.ImageWidth != nil {
			width = *doc.Metadata.ImageWidth
		}
		if doc.Metadata.ImageHeight != nil {
			height = *doc.Metadata.ImageHeight
		}
	}

	seq := make(pose.Sequence, 0, len(doc.PoseData))
	for i, jf := range doc.PoseData {
		if jf.FrameIndex == nil || jf.Timestamp == nil || jf.DetectionConfidence == nil {
			return nil, fmt.Errorf("pose_data[%d]: missing frame_index, timestamp or detection_confidence", i)
		}
		f := pose.Frame{
			FrameIndex:          *jf.FrameIndex,
			Timestamp:           *jf.Timestamp,
			ImageWidth:          width,
			ImageHeight:         height,
			DetectionConfidence: *jf.DetectionConfidence,
			Landmarks:           make([]pose.Landmark, 0, len(jf.Landmarks)),
		}
		for j, jl := range jf.Landmarks {
			if jl.Name == nil || jl.X == nil || jl.Y == nil || jl.Z == nil || jl.Visibility == nil {
				return nil, fmt.Errorf("pose_data[%d].landmarks[%d]: missing field", i, j)
			}
			f.Landmarks = append(f.Landmarks, pose.Landmark{
				Name:       *jl.Name,
				X:          *jl.X,
				Y:          *jl.Y,
				Z:          *jl.Z,
				Visibility: *jl.Visibility,
				FrameIndex: f.FrameIndex,
			})
		}
		seq = append(seq, f)
	}
	return seq, nil
}
