package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dance.motion/internal/fsutil"
	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pose"
	"github.com/banshee-data/dance.motion/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

var fixedTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func newMemExporter(t *testing.T) (*Exporter, *fsutil.MemoryFileSystem) {
	t.Helper()
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.MkdirAll("/out", 0o755))
	return &Exporter{FS: mem, Clock: timeutil.NewMockClock(fixedTime)}, mem
}

// threeFrames is three frames at ~30fps with NOSE, LEFT_EYE and RIGHT_EYE at
// fixed coordinates.
func threeFrames() pose.Sequence {
	var seq pose.Sequence
	for i, ts := range []float64{0.0, 0.033, 0.066} {
		seq = append(seq, pose.NewFrame(i, ts, []pose.Landmark{
			{Name: "NOSE", X: 320, Y: 100, Z: -10, Visibility: 0.95, FrameIndex: i},
			{Name: "LEFT_EYE", X: 330, Y: 90, Z: -12, Visibility: 0.92, FrameIndex: i},
			{Name: "RIGHT_EYE", X: 310, Y: 90, Z: -12, Visibility: 0.9, FrameIndex: i},
		}, 640, 480))
	}
	return seq
}

func readJSON(t *testing.T, mem *fsutil.MemoryFileSystem, path string) map[string]interface{} {
	t.Helper()
	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func readCSV(t *testing.T, mem *fsutil.MemoryFileSystem, path string) [][]string {
	t.Helper()
	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportJSONDocument(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	require.NoError(t, e.ExportJSON(threeFrames(), "/out/pose.json", DefaultJSONOptions()))
	doc := readJSON(t, mem, "/out/pose.json")

	assert.Equal(t, "1.0", doc["format_version"])
	assert.Equal(t, "2025-03-14T15:09:26Z", doc["export_timestamp"])
	assert.Equal(t, 3.0, doc["total_frames"])

	meta := doc["metadata"].(map[string]interface{})
	assert.Equal(t, 640.0, meta["image_width"])
	assert.Equal(t, 480.0, meta["image_height"])
	assert.Equal(t, 3.0, meta["landmark_count"])
	assert.InDelta(t, 0.066, meta["duration"], 1e-12)
	assert.InDelta(t, 3/0.066, meta["fps"], 1e-9)

	frames := doc["pose_data"].([]interface{})
	require.Len(t, frames, 3)
	first := frames[0].(map[string]interface{})
	lms := first["landmarks"].([]interface{})
	assert.Equal(t, "NOSE", lms[0].(map[string]interface{})["name"])

	// Only the final file remains; the temp sibling was renamed away.
	assert.Equal(t, []string{"/out/pose.json"}, mem.Files("/out"))
}

func TestExportJSONWithoutMetadataCompact(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	require.NoError(t, e.ExportJSON(threeFrames(), "/out/pose.json", JSONOptions{}))
	data, err := mem.ReadFile("/out/pose.json")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "metadata")
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestExportJSONEmptySequence(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	require.NoError(t, e.ExportJSON(nil, "/out/empty.json", DefaultJSONOptions()))
	doc := readJSON(t, mem, "/out/empty.json")
	assert.Equal(t, 0.0, doc["total_frames"])
	assert.Equal(t, []interface{}{}, doc["pose_data"])
	assert.NotContains(t, doc, "metadata")
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	e, _ := newMemExporter(t)

	seq := threeFrames()
	seq[1].Landmarks = seq[1].Landmarks[:1]
	seq[2].Landmarks[0].X = 0.1 + 0.2 // not exactly representable

	require.NoError(t, e.ExportJSON(seq, "/out/rt.json", DefaultJSONOptions()))
	got, err := e.LoadJSON("/out/rt.json")
	require.NoError(t, err)
	if diff := cmp.Diff(seq, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSONDefaultsAndErrors(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	noMeta := `{"pose_data":[{"frame_index":4,"timestamp":0.5,"detection_confidence":0.7,
		"landmarks":[{"name":"NOSE","x":1,"y":2,"z":3,"visibility":0.7}]}]}`
	require.NoError(t, mem.WriteFile("/out/nometa.json", []byte(noMeta), 0o644))
	seq, err := e.LoadJSON("/out/nometa.json")
	require.NoError(t, err)
	require.Len(t, seq, 1)
	assert.Equal(t, DefaultImageWidth, seq[0].ImageWidth)
	assert.Equal(t, DefaultImageHeight, seq[0].ImageHeight)
	assert.Equal(t, 4, seq[0].Landmarks[0].FrameIndex)

	tests := map[string]string{
		"malformed":       `{"pose_data": [`,
		"missing index":   `{"pose_data":[{"timestamp":0,"detection_confidence":1,"landmarks":[]}]}`,
		"missing lm name": `{"pose_data":[{"frame_index":0,"timestamp":0,"detection_confidence":1,"landmarks":[{"x":1,"y":1,"z":1,"visibility":1}]}]}`,
	}
	for name, body := range tests {
		path := "/out/" + strings.ReplaceAll(name, " ", "_") + ".json"
		require.NoError(t, mem.WriteFile(path, []byte(body), 0o644))
		_, err := e.LoadJSON(path)
		assert.Error(t, err, name)
	}

	_, err = e.LoadJSON("/out/missing.json")
	assert.Error(t, err)
}

func TestExportCSVWide(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	seq := threeFrames()
	seq[2].Landmarks = seq[2].Landmarks[:2] // RIGHT_EYE missing in the last frame
	require.NoError(t, e.ExportCSV(seq, "/out/wide.csv", CSVWide))

	rows := readCSV(t, mem, "/out/wide.csv")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{
		"frame_index", "timestamp", "detection_confidence",
		"NOSE_x", "NOSE_y", "NOSE_z", "NOSE_visibility",
		"LEFT_EYE_x", "LEFT_EYE_y", "LEFT_EYE_z", "LEFT_EYE_visibility",
		"RIGHT_EYE_x", "RIGHT_EYE_y", "RIGHT_EYE_z", "RIGHT_EYE_visibility",
	}, rows[0])
	assert.Equal(t, []string{"0", "0", "0.9", "320", "100", "-10", "0.95"}, rows[1][:7])
	assert.Equal(t, []string{"", "", "", "0"}, rows[3][11:])
}

func TestExportCSVLong(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	require.NoError(t, e.ExportCSV(threeFrames(), "/out/long.csv", CSVLong))
	rows := readCSV(t, mem, "/out/long.csv")
	require.Len(t, rows, 3*3+1)
	assert.Equal(t, []string{"frame_index", "timestamp", "detection_confidence", "landmark_name", "x", "y", "z", "visibility"}, rows[0])
	assert.Equal(t, []string{"1", "0.033", "0.9", "LEFT_EYE", "330", "90", "-12", "0.92"}, rows[5])
}

func TestExportCSVEmpty(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	for _, layout := range []CSVLayout{CSVWide, CSVLong} {
		path := "/out/" + layout.String() + ".csv"
		require.NoError(t, e.ExportCSV(nil, path, layout))
		assert.Len(t, readCSV(t, mem, path), 1)
	}
	assert.Error(t, e.ExportCSV(nil, "/out/x.csv", CSVLayout(7)))
}

func TestExportRig(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	seq := pose.Sequence{pose.NewFrame(0, 0, []pose.Landmark{
		{Name: "NOSE", X: 1, Y: 2, Z: 3, Visibility: 0.8},
		{Name: "LEFT_WRIST", X: 4, Y: 5, Z: 6, Visibility: 0.6},
	}, 640, 480)}
	require.NoError(t, e.ExportRig(seq, "/out/rig.json", RigOptions{RigType: RigRigify, FPS: 24}))

	doc := readJSON(t, mem, "/out/rig.json")
	assert.Equal(t, "blender_pose_data", doc["format"])
	assert.Equal(t, "rigify", doc["rig_type"])
	info := doc["export_info"].(map[string]interface{})
	assert.Equal(t, 24.0, info["fps"])
	assert.Equal(t, 1.0, info["frame_start"])
	assert.Equal(t, 1.0, info["frame_end"])
	assert.Len(t, doc["bone_mapping"], 18)

	anim := doc["animation_data"].([]interface{})
	frame := anim[0].(map[string]interface{})
	assert.Equal(t, 1.0, frame["frame"])

	bones := frame["bones"].(map[string]interface{})
	// NOSE drives HEAD and NECK; LEFT_WRIST drives the lower arm and hand.
	assert.Len(t, bones, 4)
	head := bones["HEAD"].(map[string]interface{})
	assert.Equal(t, []interface{}{1.0, -3.0, -2.0}, head["location"])
	assert.Equal(t, []interface{}{0.0, 0.0, 0.0}, head["rotation"])
	assert.Equal(t, []interface{}{1.0, 1.0, 1.0}, head["scale"])
	assert.Equal(t, 0.8, head["visibility"])
}

func TestExportRigDefaults(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	require.NoError(t, e.ExportRig(nil, "/out/rig.json", RigOptions{}))
	doc := readJSON(t, mem, "/out/rig.json")
	assert.Equal(t, "mixamo", doc["rig_type"])
	assert.Equal(t, 30.0, doc["export_info"].(map[string]interface{})["fps"])
	assert.Equal(t, []interface{}{}, doc["animation_data"])
}

func TestBoneMappingSharedAcrossRigTypes(t *testing.T) {
	t.Parallel()

	m := BoneMapping(RigMixamo)
	assert.Equal(t, m, BoneMapping(RigRigify))
	assert.Equal(t, m, BoneMapping(RigCustom))
	assert.Equal(t, "LEFT_FOOT_INDEX", m["LEFT_FOOT"])
	assert.Equal(t, "LEFT_HIP", m["SPINE_LOWER"])
	for _, lm := range m {
		assert.True(t, pose.IsKnownLandmark(lm), lm)
	}
}

func TestExportBVH(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	seq := pose.Sequence{
		pose.NewFrame(0, 0, []pose.Landmark{
			{Name: "LEFT_HIP", X: 10, Y: 20, Z: 30, Visibility: 1},
			{Name: "RIGHT_HIP", X: 20, Y: 40, Z: 50, Visibility: 1},
		}, 640, 480),
		pose.NewFrame(1, 0.04, []pose.Landmark{
			{Name: "LEFT_HIP", X: 10, Y: 20, Z: 30, Visibility: 1},
		}, 640, 480),
	}
	require.NoError(t, e.ExportBVH(seq, "/out/motion.bvh", 25))

	data, err := mem.ReadFile("/out/motion.bvh")
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "HIERARCHY\nROOT Hips\n{\n    OFFSET 0.0 0.0 0.0\n    CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation\n"))
	assert.Contains(t, text, "        JOINT Chest\n")
	assert.Contains(t, text, "End Site")
	assert.Contains(t, text, "MOTION\nFrames: 2\nFrame Time: 0.040000\n")

	// Declared channel count must match every motion line.
	declared := 0
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 1 && fields[0] == "CHANNELS" {
			declared += len(fields) - 2
		}
	}
	assert.Equal(t, 36, declared)

	motion := strings.Split(strings.TrimSpace(text[strings.Index(text, "Frame Time"):]), "\n")[1:]
	require.Len(t, motion, 2)
	first := strings.Fields(motion[0])
	require.Len(t, first, declared)
	assert.Equal(t, []string{"15.000000", "30.000000", "40.000000", "0.000000"}, first[:4])
	second := strings.Fields(motion[1])
	require.Len(t, second, declared)
	assert.Equal(t, "0.000000", second[0])
}

func TestStatisticsEndToEnd(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	seq := threeFrames()
	require.NoError(t, e.ExportJSON(seq, "/out/pose.json", DefaultJSONOptions()))
	assert.Equal(t, 3.0, readJSON(t, mem, "/out/pose.json")["total_frames"])

	require.NoError(t, e.ExportStatistics(seq, "/out/stats.json"))
	data, err := mem.ReadFile("/out/stats.json")
	require.NoError(t, err)
	var st Statistics
	require.NoError(t, json.Unmarshal(data, &st))

	assert.Equal(t, 3, st.General.TotalFrames)
	assert.Equal(t, Dimensions{Width: 640, Height: 480}, st.General.ImageDimensions)
	assert.InDelta(t, st.Confidence.Min, st.Confidence.Mean, 1e-12)
	assert.InDelta(t, st.Confidence.Max, st.Confidence.Mean, 1e-12)
	assert.InDelta(t, 0.0, st.Confidence.Std, 1e-12)
	assert.Len(t, st.Landmarks, 3)
	assert.Equal(t, 1.0, st.Landmarks["NOSE"].Visibility.DetectionRate)
}

func TestComputeStatisticsAggregates(t *testing.T) {
	t.Parallel()

	seq := pose.Sequence{
		pose.NewFrame(0, 0, []pose.Landmark{{Name: "NOSE", X: 0, Y: 0, Z: 0, Visibility: 0.4}}, 100, 50),
		pose.NewFrame(1, 1, []pose.Landmark{{Name: "NOSE", X: 3, Y: 4, Z: 0, Visibility: 0.8}}, 100, 50),
		pose.NewFrame(2, 2, nil, 100, 50),
		pose.NewFrame(3, 4, []pose.Landmark{{Name: "NOSE", X: 3, Y: 4, Z: 12, Visibility: 0.6}}, 100, 50),
	}
	st := ComputeStatistics(seq)

	assert.Equal(t, 4, st.General.TotalFrames)
	assert.Equal(t, 4.0, st.General.Duration)
	assert.Equal(t, 1.0, st.General.AvgFPS)
	assert.InDelta(t, 0.45, st.Confidence.Mean, 1e-12)
	assert.Equal(t, 0.0, st.Confidence.Min)
	assert.Equal(t, 0.8, st.Confidence.Max)

	nose := st.Landmarks["NOSE"]
	assert.InDelta(t, 0.6, nose.Visibility.Mean, 1e-12)
	// Population std of {0.4, 0.8, 0.6}.
	assert.InDelta(t, 0.163299316, nose.Visibility.Std, 1e-9)
	assert.InDelta(t, 2.0/3, nose.Visibility.DetectionRate, 1e-12)
	assert.Equal(t, [2]float64{0, 3}, nose.Position.XRange)
	assert.Equal(t, [2]float64{0, 4}, nose.Position.YRange)
	assert.Equal(t, [2]float64{0, 12}, nose.Position.ZRange)
	assert.InDelta(t, 5+12, nose.Position.MovementDistance, 1e-12)
}

func TestStatisticsEmpty(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	require.NoError(t, e.ExportStatistics(nil, "/out/stats.json"))
	doc := readJSON(t, mem, "/out/stats.json")
	general := doc["general"].(map[string]interface{})
	assert.Equal(t, 0.0, general["total_frames"])
	assert.Equal(t, map[string]interface{}{}, doc["landmarks"])
}

func TestExportFailureLeavesNothing(t *testing.T) {
	t.Parallel()
	e, mem := newMemExporter(t)

	err := e.ExportJSON(threeFrames(), "/missing/dir/pose.json", DefaultJSONOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json export")
	assert.False(t, mem.Exists("/missing/dir/pose.json"))

	assert.Error(t, e.ExportCSV(threeFrames(), "/missing/wide.csv", CSVWide))
	assert.Error(t, e.ExportRig(threeFrames(), "/missing/rig.json", DefaultRigOptions()))
	assert.Error(t, e.ExportBVH(threeFrames(), "/missing/motion.bvh", 30))
	assert.Error(t, e.ExportStatistics(threeFrames(), "/missing/stats.json"))
}

func TestExportOSFileSystem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := NewExporter()
	path := filepath.Join(dir, "pose.json")
	require.NoError(t, e.ExportJSON(threeFrames(), path, DefaultJSONOptions()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pose.json", entries[0].Name())

	// A directory that cannot be written to reports failure.
	assert.Error(t, e.ExportJSON(threeFrames(), filepath.Join(dir, "nope", "pose.json"), DefaultJSONOptions()))
}
