package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// DefaultBVHFPS is used when ExportBVH is given a non-positive frame rate.
const DefaultBVHFPS = 30.0

var (
	rootChannels  = []string{"Xposition", "Yposition", "Zposition", "Zrotation", "Xrotation", "Yrotation"}
	jointChannels = []string{"Zrotation", "Xrotation", "Yrotation"}
)

type bvhJoint struct {
	name     string
	offset   [3]float64
	children []bvhJoint
	endSite  *[3]float64
}

func endSite(x, y, z float64) *[3]float64 { return &[3]float64{x, y, z} }

// bvhSkeleton is a fixed stick figure. It does not adapt to the detected
// landmark set.
var bvhSkeleton = bvhJoint{
	name: "Hips",
	children: []bvhJoint{
		{name: "Spine", offset: [3]float64{0, 5, 0}, children: []bvhJoint{
			{name: "Chest", offset: [3]float64{0, 10, 0}, children: []bvhJoint{
				{name: "LeftShoulder", offset: [3]float64{5, 0, 0}, children: []bvhJoint{
					{name: "LeftArm", offset: [3]float64{10, 0, 0}, endSite: endSite(10, 0, 0)},
				}},
				{name: "RightShoulder", offset: [3]float64{-5, 0, 0}, children: []bvhJoint{
					{name: "RightArm", offset: [3]float64{-10, 0, 0}, endSite: endSite(-10, 0, 0)},
				}},
			}},
		}},
		{name: "LeftHip", offset: [3]float64{5, -5, 0}, children: []bvhJoint{
			{name: "LeftKnee", offset: [3]float64{0, -15, 0}, endSite: endSite(0, -15, 0)},
		}},
		{name: "RightHip", offset: [3]float64{-5, -5, 0}, children: []bvhJoint{
			{name: "RightKnee", offset: [3]float64{0, -15, 0}, endSite: endSite(0, -15, 0)},
		}},
	},
}

// channelCount is the number of motion values per frame the skeleton
// declares.
func (j bvhJoint) channelCount(root bool) int {
	n := len(jointChannels)
	if root {
		n = len(rootChannels)
	}
	for _, c := range j.children {
		n += c.channelCount(false)
	}
	return n
}

func formatOffset(o [3]float64) string {
	return fmt.Sprintf("OFFSET %.1f %.1f %.1f", o[0], o[1], o[2])
}

func (j bvhJoint) write(b *strings.Builder, depth int, root bool) {
	indent := strings.Repeat("    ", depth)
	if root {
		fmt.Fprintf(b, "ROOT %s\n", j.name)
	} else {
		fmt.Fprintf(b, "%sJOINT %s\n", indent, j.name)
	}
	fmt.Fprintf(b, "%s{\n", indent)
	inner := indent + "    "
	fmt.Fprintf(b, "%s%s\n", inner, formatOffset(j.offset))
	channels := jointChannels
	if root {
		channels = rootChannels
	}
	fmt.Fprintf(b, "%sCHANNELS %d %s\n", inner, len(channels), strings.Join(channels, " "))
	for _, c := range j.children {
		c.write(b, depth+1, false)
	}
	if j.endSite != nil {
		fmt.Fprintf(b, "%sEnd Site\n%s{\n%s    %s\n%s}\n", inner, inner, inner, formatOffset(*j.endSite), inner)
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

// bvhFrameValues returns one motion line's values: the hip midpoint as root
// position (zeros when either hip is missing) followed by zero rotations.
func bvhFrameValues(f *pose.Frame, channels int) []float64 {
	values := make([]float64, channels)
	left, okL := f.Landmark("LEFT_HIP")
	right, okR := f.Landmark("RIGHT_HIP")
	if okL && okR {
		values[0] = (left.X + right.X) / 2
		values[1] = (left.Y + right.Y) / 2
		values[2] = (left.Z + right.Z) / 2
	}
	return values
}

// ExportBVH writes seq as a BVH motion file over a fixed skeleton.
//
// Fidelity is partial: only the root position is driven by data (the
// midpoint of the two hip landmarks); every rotation channel is zero, so
// the skeleton translates but never bends. Each motion line has exactly as
// many values as the hierarchy declares channels.
func (e *Exporter) ExportBVH(seq pose.Sequence, path string, fps float64) error {
	if fps <= 0 {
		fps = DefaultBVHFPS
	}
	channels := bvhSkeleton.channelCount(true)

	var b strings.Builder
	b.WriteString("HIERARCHY\n")
	bvhSkeleton.write(&b, 0, true)
	b.WriteString("MOTION\n")
	fmt.Fprintf(&b, "Frames: %d\n", len(seq))
	fmt.Fprintf(&b, "Frame Time: %s\n", strconv.FormatFloat(1/fps, 'f', 6, 64))

	cells := make([]string, channels)
	for i := range seq {
		for c, v := range bvhFrameValues(&seq[i], channels) {
			cells[c] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		b.WriteString(strings.Join(cells, " "))
		b.WriteByte('\n')
	}
	return e.write("bvh", path, []byte(b.String()))
}
