// Package overlay draws pose landmarks, skeleton connections and frame
// information onto video frame images.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// Style controls what Draw renders and how.
type Style struct {
	JointColor          color.NRGBA
	ConnectionColor     color.NRGBA
	TextColor           color.NRGBA
	RawColor            color.NRGBA // unsmoothed skeleton in DrawComparison
	JointRadius         int
	ConnectionThickness int
	MinVisibility       float64 // landmarks at or below this are not drawn
	ColorByBodyPart     bool
	DrawConnections     bool
	DrawJoints          bool
	DrawInfo            bool
}

// DefaultStyle draws green joints, blue connections and the frame info
// block, hiding landmarks with visibility at or below 0.5. Raw poses in
// comparisons are red.
func DefaultStyle() Style {
	return Style{
		JointColor:          color.NRGBA{0, 255, 0, 255},
		ConnectionColor:     color.NRGBA{0, 0, 255, 255},
		TextColor:           color.NRGBA{0, 255, 0, 255},
		RawColor:            color.NRGBA{255, 0, 0, 255},
		JointRadius:         4,
		ConnectionThickness: 2,
		MinVisibility:       0.5,
		DrawConnections:     true,
		DrawJoints:          true,
		DrawInfo:            true,
	}
}

var bodyPartColors = map[string]color.NRGBA{
	pose.GroupFace:      {255, 255, 0, 255},
	pose.GroupUpperBody: {0, 255, 0, 255},
	pose.GroupHands:     {255, 0, 255, 255},
	pose.GroupLowerBody: {0, 0, 255, 255},
}

func (s Style) colorFor(name string, fallback color.NRGBA) color.NRGBA {
	if !s.ColorByBodyPart {
		return fallback
	}
	if c, ok := bodyPartColors[pose.GroupOf(name)]; ok {
		return c
	}
	return fallback
}

// Draw returns a copy of img with f rendered on top. Landmark coordinates
// are in f's image space and are rescaled when img has other dimensions.
func Draw(img image.Image, f *pose.Frame, style Style) *image.NRGBA {
	return DrawComparison(img, nil, f, style)
}

// DrawComparison renders raw beneath cleaned so the effect of smoothing is
// visible on the frame. The raw skeleton uses style.RawColor for joints and
// connections at half the joint radius. Either frame may be nil; the info
// block describes cleaned when present.
func DrawComparison(img image.Image, raw, cleaned *pose.Frame, style Style) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()
	if (raw == nil && cleaned == nil) || b.Empty() {
		return dst
	}

	l := newLayer(b.Dx(), b.Dy())
	if raw != nil {
		rs := style
		rs.ColorByBodyPart = false
		rs.JointColor, rs.ConnectionColor = style.RawColor, style.RawColor
		rs.JointRadius = style.JointRadius / 2
		l.skeleton(raw, rs)
	}
	if cleaned != nil {
		l.skeleton(cleaned, style)
	}
	draw.Draw(dst, b, l.canvas.Image(), image.Point{}, draw.Over)

	if style.DrawInfo {
		f := cleaned
		if f == nil {
			f = raw
		}
		drawInfo(dst, f, style.TextColor)
	}
	return dst
}

// layer is a transparent vector canvas the size of the frame. At 72 dpi one
// vg point is one pixel; y grows upwards, so image rows are flipped.
type layer struct {
	canvas *vgimg.Canvas
	dc     vgdraw.Canvas
	w, h   float64
}

func newLayer(w, h int) *layer {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(w), vg.Length(h)),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(color.Transparent),
	)
	return &layer{canvas: c, dc: vgdraw.New(c), w: float64(w), h: float64(h)}
}

// skeleton draws f's visible connections and joints. Segments are clipped
// to the frame and joints centred off the frame are skipped, so far
// off-image landmarks cost nothing to draw.
func (l *layer) skeleton(f *pose.Frame, style Style) {
	sx, sy := 1.0, 1.0
	if f.ImageWidth > 0 && f.ImageHeight > 0 {
		sx = l.w / float64(f.ImageWidth)
		sy = l.h / float64(f.ImageHeight)
	}
	point := func(lm pose.Landmark) vg.Point {
		return vg.Point{X: vg.Length(lm.X * sx), Y: vg.Length(l.h - lm.Y*sy)}
	}

	visible := make(map[string]pose.Landmark, len(f.Landmarks))
	for _, lm := range f.Landmarks {
		if lm.Visibility > style.MinVisibility && finite(lm.X) && finite(lm.Y) {
			visible[lm.Name] = lm
		}
	}

	if style.DrawConnections && style.ConnectionThickness > 0 {
		for _, c := range pose.Connections() {
			from, ok1 := visible[c.From]
			to, ok2 := visible[c.To]
			if !ok1 || !ok2 {
				continue
			}
			lines := l.dc.ClipLinesXY([]vg.Point{point(from), point(to)})
			l.dc.StrokeLines(vgdraw.LineStyle{
				Color: style.colorFor(c.From, style.ConnectionColor),
				Width: vg.Length(style.ConnectionThickness),
			}, lines...)
		}
	}
	if style.DrawJoints && style.JointRadius > 0 {
		for _, lm := range f.Landmarks {
			if _, ok := visible[lm.Name]; !ok {
				continue
			}
			l.dc.DrawGlyph(vgdraw.GlyphStyle{
				Color:  style.colorFor(lm.Name, style.JointColor),
				Radius: vg.Length(style.JointRadius),
				Shape:  vgdraw.CircleGlyph{},
			}, point(lm))
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// InfoLines is the text block drawn in the top-left corner.
func InfoLines(f *pose.Frame) []string {
	return []string{
		fmt.Sprintf("Frame: %d", f.FrameIndex),
		fmt.Sprintf("Time: %.2fs", f.Timestamp),
		fmt.Sprintf("Confidence: %.2f", f.DetectionConfidence),
		fmt.Sprintf("Landmarks: %d", len(f.Landmarks)),
	}
}

func drawInfo(dst draw.Image, f *pose.Frame, c color.NRGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	y := dst.Bounds().Min.Y + 20
	for _, line := range InfoLines(f) {
		d.Dot = fixed.P(dst.Bounds().Min.X+10, y)
		d.DrawString(line)
		y += face.Height + 6
	}
}
