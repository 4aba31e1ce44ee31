package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/dance.motion/internal/fsutil"
	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/timeutil"
)

var logf = monitoring.Prefixed("[export] ")

// FormatVersion is stamped into JSON and rig exports.
const FormatVersion = "1.0"

const filePerm os.FileMode = 0o644

// Exporter writes exports through a FileSystem and stamps them with the
// Clock's current time.
type Exporter struct {
	FS    fsutil.FileSystem
	Clock timeutil.Clock
}

// NewExporter returns an exporter backed by the OS filesystem and wall clock.
func NewExporter() *Exporter {
	return &Exporter{FS: fsutil.OSFileSystem{}, Clock: timeutil.RealClock{}}
}

func (e *Exporter) fs() fsutil.FileSystem {
	if e.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return e.FS
}

func (e *Exporter) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Exporter) timestamp() string {
	return e.now().Format(time.RFC3339Nano)
}

// write atomically stores data at path and logs the outcome under kind.
func (e *Exporter) write(kind, path string, data []byte) error {
	if err := fsutil.WriteFileAtomic(e.fs(), path, data, filePerm); err != nil {
		logf("%s export to %s failed: %v", kind, path, err)
		return fmt.Errorf("%s export to %s: %w", kind, path, err)
	}
	logf("%s export completed: %s", kind, path)
	return nil
}

// encodeJSON marshals v, indenting with two spaces when pretty is set.
func encodeJSON(v interface{}, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// averageFPS is frame count over duration, 0 when the duration is not
// positive.
func averageFPS(frames int, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(frames) / duration
}
