package pose

import "github.com/banshee-data/dance.motion/internal/monitoring"

// Landmark is one named 3D body point in pixel-scale coordinates. Z shares
// the X scale. Visibility is in [0, 1].
type Landmark struct {
	Name       string
	X          float64
	Y          float64
	Z          float64
	Visibility float64
	FrameIndex int
}

// Frame holds every landmark detected in one video frame. Landmark names are
// unique within a frame.
type Frame struct {
	FrameIndex          int
	Timestamp           float64 // seconds from video start
	Landmarks           []Landmark
	ImageWidth          int
	ImageHeight         int
	DetectionConfidence float64
}

// NewFrame builds a frame whose DetectionConfidence is the minimum landmark
// visibility, or 0 when there are no landmarks.
func NewFrame(index int, timestamp float64, landmarks []Landmark, width, height int) Frame {
	f := Frame{
		FrameIndex:  index,
		Timestamp:   timestamp,
		Landmarks:   landmarks,
		ImageWidth:  width,
		ImageHeight: height,
	}
	f.DetectionConfidence = f.MinVisibility()
	return f
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	out := f
	if f.Landmarks != nil {
		out.Landmarks = make([]Landmark, len(f.Landmarks))
		copy(out.Landmarks, f.Landmarks)
	}
	return out
}

// Retag returns a deep copy of f moved to a new frame index and timestamp.
// Every landmark's FrameIndex follows the frame.
func (f Frame) Retag(index int, timestamp float64) Frame {
	out := f.Clone()
	out.FrameIndex = index
	out.Timestamp = timestamp
	for i := range out.Landmarks {
		out.Landmarks[i].FrameIndex = index
	}
	return out
}

// Landmark returns the landmark called name.
func (f *Frame) Landmark(name string) (Landmark, bool) {
	for _, lm := range f.Landmarks {
		if lm.Name == name {
			return lm, true
		}
	}
	return Landmark{}, false
}

// LandmarksInGroup returns the frame's landmarks belonging to a body-part
// group. Unknown groups yield nil.
func (f *Frame) LandmarksInGroup(group string) []Landmark {
	names, ok := landmarkGroups[group]
	if !ok {
		monitoring.Logf("pose: unknown landmark group %q", group)
		return nil
	}
	member := make(map[string]struct{}, len(names))
	for _, n := range names {
		member[n] = struct{}{}
	}
	var out []Landmark
	for _, lm := range f.Landmarks {
		if _, ok := member[lm.Name]; ok {
			out = append(out, lm)
		}
	}
	return out
}

// MinVisibility is the lowest landmark visibility, 0 for an empty frame.
func (f *Frame) MinVisibility() float64 {
	if len(f.Landmarks) == 0 {
		return 0
	}
	m := f.Landmarks[0].Visibility
	for _, lm := range f.Landmarks[1:] {
		if lm.Visibility < m {
			m = lm.Visibility
		}
	}
	return m
}

// MeanVisibility is the average landmark visibility, used as an overall
// pose confidence score.
func (f *Frame) MeanVisibility() float64 {
	if len(f.Landmarks) == 0 {
		return 0
	}
	var sum float64
	for _, lm := range f.Landmarks {
		sum += lm.Visibility
	}
	return sum / float64(len(f.Landmarks))
}
