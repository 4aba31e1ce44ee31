package smoothing

import (
	"fmt"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// InterpolationMethod selects how interior gaps are filled.
type InterpolationMethod string

const (
	InterpolationLinear InterpolationMethod = "linear"
	InterpolationCubic  InterpolationMethod = "cubic"
)

// ParseInterpolationMethod maps a configuration name to a method.
func ParseInterpolationMethod(s string) (InterpolationMethod, error) {
	switch m := InterpolationMethod(s); m {
	case InterpolationLinear, InterpolationCubic:
		return m, nil
	}
	return "", fmt.Errorf("unknown interpolation method %q", s)
}

// Interpolate fills the nil positions of a gap layout.
//
// Interior gaps blend the surrounding valid frames; a landmark is emitted
// only when both neighbours carry it, with the lower of the two
// visibilities, and the frame confidence is the lower of the two frame
// confidences. Leading and trailing gaps copy the nearest valid frame,
// re-tagged with the gap's index and a timestamp extrapolated from the
// spacing of the two nearest valid frames. With fewer than two valid frames
// the valid frames are returned as they are.
//
// Cubic interpolation uses Catmull-Rom tangents from the valid frames on
// either side of the gap and falls back to the secant when a neighbour or
// landmark is missing, which reduces to linear interpolation.
func Interpolate(frames []*pose.Frame, method InterpolationMethod) (pose.Sequence, error) {
	if method != InterpolationLinear && method != InterpolationCubic {
		return nil, fmt.Errorf("unknown interpolation method %q", method)
	}

	valid := make([]int, 0, len(frames))
	for i, f := range frames {
		if f != nil {
			valid = append(valid, i)
		}
	}
	if len(valid) < 2 {
		logf("%d valid frames of %d, need 2 to interpolate", len(valid), len(frames))
		return pose.Compact(frames), nil
	}

	first, last := valid[0], valid[len(valid)-1]
	out := make(pose.Sequence, 0, len(frames))
	next := 0 // index into valid of the first valid position >= i
	filled := 0
	for i, f := range frames {
		for next < len(valid) && valid[next] < i {
			next++
		}
		switch {
		case f != nil:
			out = append(out, f.Clone())
			continue
		case i < first:
			out = append(out, extrapolate(frames, valid[0], valid[1], i))
		case i > last:
			out = append(out, extrapolate(frames, last, valid[len(valid)-2], i))
		default:
			out = append(out, blend(frames, valid, next-1, next, i, method))
		}
		filled++
	}
	if filled > 0 {
		logf("interpolated %d of %d frames (%s)", filled, len(frames), method)
	}
	return out, nil
}

// extrapolate copies the valid frame at position anchor into gap position
// pos. other is the next-nearest valid position, used for frame spacing.
func extrapolate(frames []*pose.Frame, anchor, other, pos int) pose.Frame {
	a, b := frames[anchor], frames[other]
	step := (b.Timestamp - a.Timestamp) / float64(other-anchor)
	delta := pos - anchor
	return a.Retag(a.FrameIndex+delta, a.Timestamp+float64(delta)*step)
}

// blend builds the frame at gap position pos between valid[lo] and valid[hi].
func blend(frames []*pose.Frame, valid []int, lo, hi, pos int, method InterpolationMethod) pose.Frame {
	p1, p2 := valid[lo], valid[hi]
	prev, next := frames[p1], frames[p2]
	alpha := float64(pos-p1) / float64(p2-p1)

	var before, after *pose.Frame
	var p0, p3 int
	if method == InterpolationCubic {
		if lo > 0 {
			p0 = valid[lo-1]
			before = frames[p0]
		}
		if hi+1 < len(valid) {
			p3 = valid[hi+1]
			after = frames[p3]
		}
	}

	index := prev.FrameIndex + (pos - p1)
	landmarks := make([]pose.Landmark, 0, len(prev.Landmarks))
	for _, a := range prev.Landmarks {
		b, ok := next.Landmark(a.Name)
		if !ok {
			continue
		}
		lm := pose.Landmark{
			Name:       a.Name,
			Visibility: min(a.Visibility, b.Visibility),
			FrameIndex: index,
		}
		if method == InterpolationCubic {
			h := hermite{t1: float64(p1), t2: float64(p2), s: alpha}
			c0, has0 := neighbour(before, a.Name)
			c3, has3 := neighbour(after, a.Name)
			lm.X = h.eval(a.X, b.X, c0.X, c3.X, float64(p0), float64(p3), has0, has3)
			lm.Y = h.eval(a.Y, b.Y, c0.Y, c3.Y, float64(p0), float64(p3), has0, has3)
			lm.Z = h.eval(a.Z, b.Z, c0.Z, c3.Z, float64(p0), float64(p3), has0, has3)
		} else {
			lm.X = lerp(a.X, b.X, alpha)
			lm.Y = lerp(a.Y, b.Y, alpha)
			lm.Z = lerp(a.Z, b.Z, alpha)
		}
		landmarks = append(landmarks, lm)
	}

	return pose.Frame{
		FrameIndex:          index,
		Timestamp:           lerp(prev.Timestamp, next.Timestamp, alpha),
		Landmarks:           landmarks,
		ImageWidth:          prev.ImageWidth,
		ImageHeight:         prev.ImageHeight,
		DetectionConfidence: min(prev.DetectionConfidence, next.DetectionConfidence),
	}
}

func neighbour(f *pose.Frame, name string) (pose.Landmark, bool) {
	if f == nil {
		return pose.Landmark{}, false
	}
	return f.Landmark(name)
}

func lerp(a, b, alpha float64) float64 {
	return a + alpha*(b-a)
}

// hermite evaluates a cubic Hermite segment between samples at t1 and t2
// at normalised position s in [0, 1].
type hermite struct {
	t1, t2 float64
	s      float64
}

// eval interpolates between v1 and v2. v0 at t0 and v3 at t3 supply
// Catmull-Rom tangents when present.
func (h hermite) eval(v1, v2, v0, v3, t0, t3 float64, has0, has3 bool) float64 {
	span := h.t2 - h.t1
	secant := (v2 - v1) / span
	m1, m2 := secant, secant
	if has0 {
		m1 = (v2 - v0) / (h.t2 - t0)
	}
	if has3 {
		m2 = (v3 - v1) / (t3 - h.t1)
	}
	s := h.s
	s2, s3 := s*s, s*s*s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*v1 + h10*span*m1 + h01*v2 + h11*span*m2
}
