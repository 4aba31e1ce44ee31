package export

import (
	"fmt"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// Rig types accepted by ExportRig. All three currently share one bone
// mapping.
const (
	RigMixamo = "mixamo"
	RigRigify = "rigify"
	RigCustom = "custom"
)

// DefaultRigFPS is used when RigOptions.FPS is not positive.
const DefaultRigFPS = 30.0

// boneMapping maps rig bone names to the landmark that drives them. Spine,
// neck and head have no detected joint and borrow a nearby landmark.
var boneMapping = []struct {
	Bone     string
	Landmark string
}{
	{"HEAD", "NOSE"},
	{"NECK", "NOSE"},
	{"SPINE_UPPER", "LEFT_SHOULDER"},
	{"SPINE_LOWER", "LEFT_HIP"},
	{"LEFT_SHOULDER", "LEFT_SHOULDER"},
	{"RIGHT_SHOULDER", "RIGHT_SHOULDER"},
	{"LEFT_ARM_UPPER", "LEFT_ELBOW"},
	{"RIGHT_ARM_UPPER", "RIGHT_ELBOW"},
	{"LEFT_ARM_LOWER", "LEFT_WRIST"},
	{"RIGHT_ARM_LOWER", "RIGHT_WRIST"},
	{"LEFT_HAND", "LEFT_WRIST"},
	{"RIGHT_HAND", "RIGHT_WRIST"},
	{"LEFT_LEG_UPPER", "LEFT_KNEE"},
	{"RIGHT_LEG_UPPER", "RIGHT_KNEE"},
	{"LEFT_LEG_LOWER", "LEFT_ANKLE"},
	{"RIGHT_LEG_LOWER", "RIGHT_ANKLE"},
	{"LEFT_FOOT", "LEFT_FOOT_INDEX"},
	{"RIGHT_FOOT", "RIGHT_FOOT_INDEX"},
}

// BoneMapping returns the bone to landmark table for a rig type.
func BoneMapping(rigType string) map[string]string {
	switch rigType {
	case RigMixamo, RigRigify, RigCustom:
	default:
		logf("unknown rig type %q, using default bone mapping", rigType)
	}
	m := make(map[string]string, len(boneMapping))
	for _, b := range boneMapping {
		m[b.Bone] = b.Landmark
	}
	return m
}

// RigOptions controls ExportRig.
type RigOptions struct {
	RigType string
	FPS     float64
}

// DefaultRigOptions returns a mixamo rig at 30 fps.
func DefaultRigOptions() RigOptions {
	return RigOptions{RigType: RigMixamo, FPS: DefaultRigFPS}
}

type rigDocument struct {
	Format        string            `json:"format"`
	Version       string            `json:"version"`
	RigType       string            `json:"rig_type"`
	ExportInfo    rigExportInfo     `json:"export_info"`
	BoneMapping   map[string]string `json:"bone_mapping"`
	AnimationData []rigFrame        `json:"animation_data"`
}

type rigExportInfo struct {
	Timestamp   string  `json:"timestamp"`
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps"`
	FrameStart  int     `json:"frame_start"`
	FrameEnd    int     `json:"frame_end"`
}

type rigFrame struct {
	Frame     int                `json:"frame"`
	Timestamp float64            `json:"timestamp"`
	Bones     map[string]rigBone `json:"bones"`
}

type rigBone struct {
	Location   [3]float64 `json:"location"`
	Rotation   [3]float64 `json:"rotation"`
	Scale      [3]float64 `json:"scale"`
	Visibility float64    `json:"visibility"`
}

// rigLocation converts detector axes (x right, y down, z depth) into the
// animation tool's Z-up frame: [x, -z, -y].
func rigLocation(lm pose.Landmark) [3]float64 {
	return [3]float64{lm.X, -lm.Z, -lm.Y}
}

// ExportRig writes seq as rig animation JSON. Frame numbers start at 1
// (frame_index + 1). Bones whose landmark is absent from a frame are left
// out of that frame. Rotation is always zero and scale always one; only
// locations carry data.
func (e *Exporter) ExportRig(seq pose.Sequence, path string, opts RigOptions) error {
	rigType := opts.RigType
	if rigType == "" {
		rigType = RigMixamo
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultRigFPS
	}

	doc := rigDocument{
		Format:  "blender_pose_data",
		Version: FormatVersion,
		RigType: rigType,
		ExportInfo: rigExportInfo{
			Timestamp:   e.timestamp(),
			TotalFrames: len(seq),
			FPS:         fps,
			FrameStart:  1,
			FrameEnd:    len(seq),
		},
		BoneMapping:   BoneMapping(rigType),
		AnimationData: make([]rigFrame, 0, len(seq)),
	}

	for i := range seq {
		f := &seq[i]
		rf := rigFrame{
			Frame:     f.FrameIndex + 1,
			Timestamp: f.Timestamp,
			Bones:     make(map[string]rigBone),
		}
		for _, b := range boneMapping {
			lm, ok := f.Landmark(b.Landmark)
			if !ok {
				continue
			}
			rf.Bones[b.Bone] = rigBone{
				Location:   rigLocation(lm),
				Scale:      [3]float64{1, 1, 1},
				Visibility: lm.Visibility,
			}
		}
		doc.AnimationData = append(doc.AnimationData, rf)
	}

	data, err := encodeJSON(doc, true)
	if err != nil {
		logf("rig encode failed: %v", err)
		return fmt.Errorf("encode rig: %w", err)
	}
	return e.write("rig", path, data)
}
