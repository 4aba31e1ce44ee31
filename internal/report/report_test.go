package report

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dance.motion/internal/fsutil"
	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pose"
)

func init() { monitoring.SetLogger(nil) }

func wave(n int, offset float64) pose.Sequence {
	seq := make(pose.Sequence, n)
	for i := 0; i < n; i++ {
		v := float64(i)*10 + offset
		seq[i] = pose.NewFrame(i, float64(i)/30, []pose.Landmark{
			{Name: "NOSE", X: v, Y: 200 - v, Z: 1, Visibility: 0.9},
			{Name: "LEFT_WRIST", X: 2 * v, Y: v, Z: 2, Visibility: 0.3},
		}, 640, 480)
	}
	return seq
}

func TestPalette(t *testing.T) {
	assert.Nil(t, palette(0))
	colors := palette(4)
	require.Len(t, colors, 4)
	assert.NotEqual(t, colors[0], colors[1])
	for _, c := range colors {
		_, _, _, a := c.RGBA()
		assert.Equal(t, uint32(0xffff), a)
	}
}

func TestTrajectoryPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectories.png")
	require.NoError(t, TrajectoryPlot(wave(10, 0), []string{"NOSE", "LEFT_WRIST"}, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestTrajectoryPlotNothingVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectories.png")
	err := TrajectoryPlot(wave(10, 0), []string{"LEFT_WRIST", "RIGHT_ANKLE"}, path)
	assert.ErrorIs(t, err, ErrNoData)
	assert.NoFileExists(t, path)
}

func TestSmoothingPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NOSE.png")
	require.NoError(t, SmoothingPlot(wave(12, 3), wave(12, 0), "NOSE", path))
	assert.FileExists(t, path)

	err := SmoothingPlot(wave(12, 3), wave(12, 0), "RIGHT_HEEL", filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestConfidenceChart(t *testing.T) {
	html, err := ConfidenceChart(wave(5, 0), "clip.mp4")
	require.NoError(t, err)
	body := string(html)
	assert.Contains(t, body, "Detection Confidence")
	assert.Contains(t, body, "clip.mp4")
	assert.Contains(t, body, "mean visibility")
	assert.True(t, strings.Contains(body, "echarts"))

	_, err = ConfidenceChart(nil, "empty")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWriteConfidenceChart(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.MkdirAll("/out", 0o755))
	require.NoError(t, WriteConfidenceChart(mem, wave(3, 0), "clip", "/out/confidence.html"))
	data, err := mem.ReadFile("/out/confidence.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "min visibility")
}
