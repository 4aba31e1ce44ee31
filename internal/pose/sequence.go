package pose

import (
	"errors"
	"fmt"

	"github.com/banshee-data/dance.motion/internal/monitoring"
)

// Sequence is an ordered run of frames with strictly ascending frame
// indices. Contiguity is only guaranteed after gap interpolation.
type Sequence []Frame

// Clone returns a deep copy of s.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	for i, f := range s {
		out[i] = f.Clone()
	}
	return out
}

// Duration is the timestamp of the last frame, 0 for an empty sequence.
func (s Sequence) Duration() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Timestamp
}

// Errors returned by Validate.
var (
	ErrFrameOrder      = errors.New("frame indices must be strictly ascending")
	ErrImageDimensions = errors.New("frames disagree on image dimensions")
	ErrDuplicateName   = errors.New("duplicate landmark name in frame")
)

// Validate checks ordering, per-frame name uniqueness and that every frame
// shares the first frame's image dimensions.
func (s Sequence) Validate() error {
	for i := range s {
		f := &s[i]
		if i > 0 {
			if f.FrameIndex <= s[i-1].FrameIndex {
				return fmt.Errorf("frame %d after %d: %w", f.FrameIndex, s[i-1].FrameIndex, ErrFrameOrder)
			}
			if f.ImageWidth != s[0].ImageWidth || f.ImageHeight != s[0].ImageHeight {
				return fmt.Errorf("frame %d is %dx%d, want %dx%d: %w",
					f.FrameIndex, f.ImageWidth, f.ImageHeight, s[0].ImageWidth, s[0].ImageHeight, ErrImageDimensions)
			}
		}
		seen := make(map[string]struct{}, len(f.Landmarks))
		for _, lm := range f.Landmarks {
			if _, dup := seen[lm.Name]; dup {
				return fmt.Errorf("frame %d landmark %s: %w", f.FrameIndex, lm.Name, ErrDuplicateName)
			}
			seen[lm.Name] = struct{}{}
		}
	}
	return nil
}

// Layout places a sparse sequence into a slice of length n indexed by frame
// index. Positions with no frame are nil. Frames whose index falls outside
// [0, n) are dropped and logged.
func Layout(s Sequence, n int) []*Frame {
	out := make([]*Frame, n)
	for i := range s {
		idx := s[i].FrameIndex
		if idx < 0 || idx >= n {
			monitoring.Logf("pose: frame %d outside layout of %d frames, dropped", idx, n)
			continue
		}
		f := s[i].Clone()
		out[idx] = &f
	}
	return out
}

// Compact collects the non-nil frames of a gap layout into a Sequence.
func Compact(frames []*Frame) Sequence {
	out := make(Sequence, 0, len(frames))
	for _, f := range frames {
		if f != nil {
			out = append(out, f.Clone())
		}
	}
	return out
}
