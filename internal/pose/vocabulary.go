package pose

import "fmt"

// landmarkNames is the detector's landmark vocabulary in index order.
var landmarkNames = [...]string{
	"NOSE",
	"LEFT_EYE_INNER",
	"LEFT_EYE",
	"LEFT_EYE_OUTER",
	"RIGHT_EYE_INNER",
	"RIGHT_EYE",
	"RIGHT_EYE_OUTER",
	"LEFT_EAR",
	"RIGHT_EAR",
	"MOUTH_LEFT",
	"MOUTH_RIGHT",
	"LEFT_SHOULDER",
	"RIGHT_SHOULDER",
	"LEFT_ELBOW",
	"RIGHT_ELBOW",
	"LEFT_WRIST",
	"RIGHT_WRIST",
	"LEFT_PINKY",
	"RIGHT_PINKY",
	"LEFT_INDEX",
	"RIGHT_INDEX",
	"LEFT_THUMB",
	"RIGHT_THUMB",
	"LEFT_HIP",
	"RIGHT_HIP",
	"LEFT_KNEE",
	"RIGHT_KNEE",
	"LEFT_ANKLE",
	"RIGHT_ANKLE",
	"LEFT_HEEL",
	"RIGHT_HEEL",
	"LEFT_FOOT_INDEX",
	"RIGHT_FOOT_INDEX",
}

// LandmarkCount is the size of the fixed vocabulary.
const LandmarkCount = len(landmarkNames)

var landmarkIndex = func() map[string]int {
	m := make(map[string]int, LandmarkCount)
	for i, n := range landmarkNames {
		m[n] = i
	}
	return m
}()

// LandmarkNames returns the vocabulary in detector index order.
func LandmarkNames() []string {
	out := make([]string, LandmarkCount)
	copy(out, landmarkNames[:])
	return out
}

// LandmarkName maps a detector index to its name. Indices outside the
// vocabulary become LANDMARK_<i>.
func LandmarkName(index int) string {
	if index >= 0 && index < LandmarkCount {
		return landmarkNames[index]
	}
	return fmt.Sprintf("LANDMARK_%d", index)
}

// LandmarkIndex returns the detector index for name.
func LandmarkIndex(name string) (int, bool) {
	i, ok := landmarkIndex[name]
	return i, ok
}

// IsKnownLandmark reports whether name is part of the vocabulary.
func IsKnownLandmark(name string) bool {
	_, ok := landmarkIndex[name]
	return ok
}

// Body-part group names.
const (
	GroupFace      = "face"
	GroupUpperBody = "upper_body"
	GroupHands     = "hands"
	GroupLowerBody = "lower_body"
)

var landmarkGroups = map[string][]string{
	GroupFace: {
		"NOSE", "LEFT_EYE_INNER", "LEFT_EYE", "LEFT_EYE_OUTER", "RIGHT_EYE_INNER",
		"RIGHT_EYE", "RIGHT_EYE_OUTER", "LEFT_EAR", "RIGHT_EAR", "MOUTH_LEFT", "MOUTH_RIGHT",
	},
	GroupUpperBody: {
		"LEFT_SHOULDER", "RIGHT_SHOULDER", "LEFT_ELBOW", "RIGHT_ELBOW", "LEFT_WRIST", "RIGHT_WRIST",
	},
	GroupHands: {
		"LEFT_PINKY", "RIGHT_PINKY", "LEFT_INDEX", "RIGHT_INDEX", "LEFT_THUMB", "RIGHT_THUMB",
	},
	GroupLowerBody: {
		"LEFT_HIP", "RIGHT_HIP", "LEFT_KNEE", "RIGHT_KNEE", "LEFT_ANKLE",
		"RIGHT_ANKLE", "LEFT_HEEL", "RIGHT_HEEL", "LEFT_FOOT_INDEX", "RIGHT_FOOT_INDEX",
	},
}

// LandmarkGroups returns a copy of the body-part groups.
func LandmarkGroups() map[string][]string {
	out := make(map[string][]string, len(landmarkGroups))
	for g, names := range landmarkGroups {
		out[g] = append([]string(nil), names...)
	}
	return out
}

// GroupOf returns the body-part group containing name, or "" if none does.
func GroupOf(name string) string {
	for g, names := range landmarkGroups {
		for _, n := range names {
			if n == name {
				return g
			}
		}
	}
	return ""
}

// Connection is one skeleton edge between two named landmarks.
type Connection struct {
	From string
	To   string
}

var connections = []Connection{
	// face
	{"NOSE", "LEFT_EYE_INNER"},
	{"LEFT_EYE_INNER", "LEFT_EYE"},
	{"LEFT_EYE", "LEFT_EYE_OUTER"},
	{"LEFT_EYE_OUTER", "LEFT_EAR"},
	{"NOSE", "RIGHT_EYE_INNER"},
	{"RIGHT_EYE_INNER", "RIGHT_EYE"},
	{"RIGHT_EYE", "RIGHT_EYE_OUTER"},
	{"RIGHT_EYE_OUTER", "RIGHT_EAR"},
	{"MOUTH_LEFT", "MOUTH_RIGHT"},
	// arms
	{"LEFT_SHOULDER", "RIGHT_SHOULDER"},
	{"LEFT_SHOULDER", "LEFT_ELBOW"},
	{"LEFT_ELBOW", "LEFT_WRIST"},
	{"RIGHT_SHOULDER", "RIGHT_ELBOW"},
	{"RIGHT_ELBOW", "RIGHT_WRIST"},
	// hands
	{"LEFT_WRIST", "LEFT_PINKY"},
	{"LEFT_WRIST", "LEFT_INDEX"},
	{"LEFT_WRIST", "LEFT_THUMB"},
	{"RIGHT_WRIST", "RIGHT_PINKY"},
	{"RIGHT_WRIST", "RIGHT_INDEX"},
	{"RIGHT_WRIST", "RIGHT_THUMB"},
	// torso
	{"LEFT_SHOULDER", "LEFT_HIP"},
	{"RIGHT_SHOULDER", "RIGHT_HIP"},
	{"LEFT_HIP", "RIGHT_HIP"},
	// legs
	{"LEFT_HIP", "LEFT_KNEE"},
	{"LEFT_KNEE", "LEFT_ANKLE"},
	{"LEFT_ANKLE", "LEFT_HEEL"},
	{"LEFT_ANKLE", "LEFT_FOOT_INDEX"},
	{"RIGHT_HIP", "RIGHT_KNEE"},
	{"RIGHT_KNEE", "RIGHT_ANKLE"},
	{"RIGHT_ANKLE", "RIGHT_HEEL"},
	{"RIGHT_ANKLE", "RIGHT_FOOT_INDEX"},
}

// Connections returns the skeleton edges used for drawing.
func Connections() []Connection {
	return append([]Connection(nil), connections...)
}
