package overlay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the webp decoder for imaging.Open

	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pose"
)

var logf = monitoring.Prefixed("[overlay] ")

// FrameFileName is the name of an extracted frame image.
func FrameFileName(index int, ext string) string {
	return fmt.Sprintf("frame_%06d%s", index, ext)
}

// parseFrameFileName extracts the frame index from frame_NNNNNN.<ext>.
func parseFrameFileName(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var idx int
	if n, err := fmt.Sscanf(base, "frame_%d", &idx); err != nil || n != 1 {
		return 0, false
	}
	return idx, FrameFileName(idx, "") == base
}

// AnnotateDir draws seq onto every frame_NNNNNN image in inDir and writes
// PNGs with the same base name into outDir. Images without a matching pose
// frame are written unannotated so the output stays contiguous. It returns
// the number of images that carried a pose.
func AnnotateDir(ctx context.Context, inDir, outDir string, seq pose.Sequence, style Style) (int, error) {
	return AnnotateComparisonDir(ctx, inDir, outDir, nil, seq, style)
}

// AnnotateComparisonDir is AnnotateDir with the raw pose drawn beneath the
// cleaned one on each frame (see DrawComparison). raw may be nil.
func AnnotateComparisonDir(ctx context.Context, inDir, outDir string, raw, cleaned pose.Sequence, style Style) (int, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return 0, fmt.Errorf("read frame dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create overlay dir: %w", err)
	}

	rawByIndex := indexFrames(raw)
	byIndex := indexFrames(cleaned)

	type frameFile struct {
		index int
		name  string
	}
	var files []frameFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if idx, ok := parseFrameFileName(e.Name()); ok {
			files = append(files, frameFile{idx, e.Name()})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })

	annotated := 0
	for _, ff := range files {
		if err := ctx.Err(); err != nil {
			return annotated, err
		}
		img, err := imaging.Open(filepath.Join(inDir, ff.name))
		if err != nil {
			logf("skipping %s: %v", ff.name, err)
			continue
		}
		f, rf := byIndex[ff.index], rawByIndex[ff.index]
		out := DrawComparison(img, rf, f, style)
		if f != nil || rf != nil {
			annotated++
		}
		dst := filepath.Join(outDir, FrameFileName(ff.index, ".png"))
		if err := imaging.Save(out, dst); err != nil {
			return annotated, fmt.Errorf("save %s: %w", dst, err)
		}
	}
	logf("annotated %d of %d frame images into %s", annotated, len(files), outDir)
	return annotated, nil
}

func indexFrames(seq pose.Sequence) map[int]*pose.Frame {
	m := make(map[int]*pose.Frame, len(seq))
	for i := range seq {
		m[seq[i].FrameIndex] = &seq[i]
	}
	return m
}
