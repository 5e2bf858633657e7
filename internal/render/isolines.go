package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/weathertiles/core/internal/resample"
)

type point struct{ x, y float64 }

type segment struct {
	a, b  point
	value float64
}

// edge enumerates the four sides of a marching-squares cell.
type edge int

const (
	edgeTop edge = iota
	edgeRight
	edgeBottom
	edgeLeft
)

// caseSegments maps the 16 marching-squares corner configurations (bit 3 =
// top-left, bit 2 = top-right, bit 1 = bottom-right, bit 0 = bottom-left,
// set when the corner value is >= the contour level) to the edge pairs a
// contour line crosses. Cases 5 and 10 are the ambiguous saddle
// configurations; both segments are emitted rather than resolving via the
// center-average disambiguation, a deliberate simplification recorded in
// DESIGN.md.
var caseSegments = map[int][][2]edge{
	0:  nil,
	1:  {{edgeLeft, edgeBottom}},
	2:  {{edgeBottom, edgeRight}},
	3:  {{edgeLeft, edgeRight}},
	4:  {{edgeTop, edgeRight}},
	5:  {{edgeTop, edgeLeft}, {edgeBottom, edgeRight}},
	6:  {{edgeTop, edgeBottom}},
	7:  {{edgeTop, edgeLeft}},
	8:  {{edgeTop, edgeLeft}},
	9:  {{edgeTop, edgeBottom}},
	10: {{edgeTop, edgeRight}, {edgeLeft, edgeBottom}},
	11: {{edgeTop, edgeRight}},
	12: {{edgeLeft, edgeRight}},
	13: {{edgeBottom, edgeRight}},
	14: {{edgeLeft, edgeBottom}},
	15: nil,
}

// extractContours runs marching squares over g for a single level, emitting
// segments in row-major cell order (spec.md §4.6).
func extractContours(g *resample.ResampledGrid, level float64) []segment {
	var out []segment
	size := g.Size

	for i := 0; i < size-1; i++ {
		for j := 0; j < size-1; j++ {
			tl, tlOK := g.At(i, j)
			tr, trOK := g.At(i, j+1)
			br, brOK := g.At(i+1, j+1)
			bl, blOK := g.At(i+1, j)
			if !tlOK || !trOK || !brOK || !blOK {
				continue
			}

			idx := 0
			if float64(tl) >= level {
				idx |= 8
			}
			if float64(tr) >= level {
				idx |= 4
			}
			if float64(br) >= level {
				idx |= 2
			}
			if float64(bl) >= level {
				idx |= 1
			}

			pairs := caseSegments[idx]
			for _, pair := range pairs {
				a := edgePoint(pair[0], i, j, float64(tl), float64(tr), float64(br), float64(bl), level)
				b := edgePoint(pair[1], i, j, float64(tl), float64(tr), float64(br), float64(bl), level)
				out = append(out, segment{a: a, b: b, value: level})
			}
		}
	}
	return out
}

// edgePoint linearly interpolates the contour crossing along one edge of
// cell (i, j); cell corners occupy pixel centers (i, j) .. (i+1, j+1).
func edgePoint(e edge, i, j int, tl, tr, br, bl, level float64) point {
	lerpEdge := func(v0, v1 float64, x0, y0, x1, y1 float64) point {
		span := v1 - v0
		t := 0.5
		if span != 0 {
			t = (level - v0) / span
		}
		return point{x: x0 + (x1-x0)*t, y: y0 + (y1-y0)*t}
	}
	switch e {
	case edgeTop:
		return lerpEdge(tl, tr, float64(j), float64(i), float64(j+1), float64(i))
	case edgeRight:
		return lerpEdge(tr, br, float64(j+1), float64(i), float64(j+1), float64(i+1))
	case edgeBottom:
		return lerpEdge(bl, br, float64(j), float64(i+1), float64(j+1), float64(i+1))
	default: // edgeLeft
		return lerpEdge(tl, bl, float64(j), float64(i), float64(j), float64(i+1))
	}
}

// RenderIsolines draws antialiased contour lines for every level of style,
// labeling every LabelEvery-th level with its numeric value once, at the
// midpoint of that level's middle segment in emission order; the level's
// other segments carry no label.
func RenderIsolines(g *resample.ResampledGrid, style *Isolines) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Size, g.Size))
	width := style.Width
	if width <= 0 {
		width = 1.5
	}

	levels := append([]float64(nil), style.Levels...)
	sort.Float64s(levels)

	lineColor := image.NewUniform(color.NRGBA{R: 20, G: 20, B: 20, A: 255})

	for levelIdx, level := range levels {
		segs := extractContours(g, level)
		for _, s := range segs {
			strokeSegment(img, lineColor, s, width)
		}
		if style.LabelEvery > 0 && levelIdx%style.LabelEvery == 0 && len(segs) > 0 {
			mid := segs[len(segs)/2]
			drawLabel(img, mid, level)
		}
	}
	return img
}

// strokeSegment draws an antialiased quad of the given width along a-b,
// using the same x/image/vector.Rasterizer fill technique the teacher's
// raster package uses for polygon fills.
func strokeSegment(dst *image.NRGBA, src image.Image, s segment, width float64) {
	dx := s.b.x - s.a.x
	dy := s.b.y - s.a.y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	ras := vector.NewRasterizer(dst.Bounds().Dx(), dst.Bounds().Dy())
	pts := [4]point{
		{s.a.x + nx, s.a.y + ny},
		{s.b.x + nx, s.b.y + ny},
		{s.b.x - nx, s.b.y - ny},
		{s.a.x - nx, s.a.y - ny},
	}
	ras.MoveTo(float32(pts[0].x), float32(pts[0].y))
	for _, p := range pts[1:] {
		ras.LineTo(float32(p.x), float32(p.y))
	}
	ras.ClosePath()
	ras.Draw(dst, dst.Bounds(), src, image.Point{})
}

// drawLabel renders a level's numeric value at a segment's midpoint using
// the stdlib bitmap font shipped with x/image. Orientation is always
// horizontal rather than tangent to the contour, a simplification recorded
// in DESIGN.md: x/image's font.Drawer has no rotation support, and no
// example repo in the corpus imports a vector-text/rotation library.
func drawLabel(dst *image.NRGBA, s segment, value float64) {
	midX := (s.a.x + s.b.x) / 2
	midY := (s.a.y + s.b.y) / 2

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 20, G: 20, B: 20, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(midX), int(midY)),
	}
	d.DrawString(fmt.Sprintf("%g", value))
}
