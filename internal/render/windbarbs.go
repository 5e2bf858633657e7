package render

import (
	"image"
	"image/color"
	"math"

	"github.com/weathertiles/core/internal/resample"
)

const (
	staffLength   = 24.0
	barbSpacing   = 4.0
	fullBarbUnits = 10.0
	halfBarbUnits = 5.0
	pennantUnits  = 50.0
)

// RenderWindBarbs places one barb glyph per lattice point of style.Spacing
// tile pixels, using u and v as the resampled wind components (spec.md
// §4.6). A lattice point is skipped (left transparent) if either component
// is invalid at that pixel.
func RenderWindBarbs(u, v *resample.ResampledGrid, style *WindBarbs) *image.NRGBA {
	spacing := style.Spacing
	if spacing <= 0 {
		spacing = 24
	}
	threshold := style.SpeedThreshold
	if threshold <= 0 {
		threshold = 3
	}

	img := image.NewNRGBA(u.Bounds())
	ink := color.NRGBA{R: 10, G: 10, B: 10, A: 255}

	for cy := spacing / 2; cy < u.Size; cy += spacing {
		for cx := spacing / 2; cx < u.Size; cx += spacing {
			uv, uOK := u.At(cy, cx)
			vv, vOK := v.At(cy, cx)
			if !uOK || !vOK {
				continue
			}

			uNative, vNative := float64(uv), float64(vv)
			speed := math.Hypot(uNative, vNative)
			if style.ToDisplayUnit != nil {
				speed = style.ToDisplayUnit(speed)
			}
			direction := math.Atan2(-uNative, -vNative)

			center := point{x: float64(cx), y: float64(cy)}
			if speed < threshold {
				drawOpenCircle(img, ink, center, 3)
				continue
			}
			drawBarb(img, ink, center, direction, speed)
		}
	}
	return img
}

// drawBarb draws a staff from center oriented along direction, with
// pennant (50), full-barb (10), and half-barb (5) ticks consuming the
// speed from the largest unit down, per spec.md §4.6.
func drawBarb(img *image.NRGBA, ink color.NRGBA, center point, direction, speed float64) {
	dirX, dirY := math.Sin(direction), -math.Cos(direction)
	tip := point{x: center.x + dirX*staffLength, y: center.y + dirY*staffLength}
	drawLine(img, ink, center, tip, 1.2)

	remaining := speed
	// perpendicular unit vector, used to offset tick marks to one side of
	// the staff.
	perpX, perpY := -dirY, dirX

	pos := 0.0
	for remaining >= pennantUnits {
		drawTick(img, ink, tip, dirX, dirY, perpX, perpY, pos, true)
		remaining -= pennantUnits
		pos += barbSpacing
	}
	for remaining >= fullBarbUnits {
		drawTick(img, ink, tip, dirX, dirY, perpX, perpY, pos, false)
		remaining -= fullBarbUnits
		pos += barbSpacing
	}
	if remaining >= halfBarbUnits {
		drawHalfTick(img, ink, tip, dirX, dirY, perpX, perpY, pos)
	}
}

// drawTick draws one full-barb (simple tick) or pennant (filled triangle)
// at distance pos back from the staff tip toward the center.
func drawTick(img *image.NRGBA, ink color.NRGBA, tip point, dirX, dirY, perpX, perpY, pos float64, pennant bool) {
	base := point{x: tip.x - dirX*pos, y: tip.y - dirY*pos}
	tickLen := 8.0
	end := point{x: base.x + perpX*tickLen, y: base.y + perpY*tickLen}
	if !pennant {
		drawLine(img, ink, base, end, 1.2)
		return
	}
	// Pennant: filled triangle from base back along the staff to end.
	back := point{x: base.x - dirX*barbSpacing, y: base.y - dirY*barbSpacing}
	fillTriangle(img, ink, base, end, back)
}

func drawHalfTick(img *image.NRGBA, ink color.NRGBA, tip point, dirX, dirY, perpX, perpY, pos float64) {
	base := point{x: tip.x - dirX*pos, y: tip.y - dirY*pos}
	tickLen := 4.0
	end := point{x: base.x + perpX*tickLen, y: base.y + perpY*tickLen}
	drawLine(img, ink, base, end, 1.2)
}

// drawLine stamps discs along a-b, matching the teacher's disc-stroke
// stamping in internal/raster/raster.go.
func drawLine(img *image.NRGBA, c color.NRGBA, a, b point, width float64) {
	dx, dy := b.x-a.x, b.y-a.y
	length := math.Hypot(dx, dy)
	radius := width / 2
	if length == 0 {
		drawDisc(img, c, a, radius)
		return
	}
	steps := int(math.Ceil(length / 0.75))
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		drawDisc(img, c, point{x: a.x + dx*t, y: a.y + dy*t}, radius)
	}
}

func drawDisc(img *image.NRGBA, c color.NRGBA, center point, radius float64) {
	b := img.Bounds()
	minX, maxX := int(math.Floor(center.x-radius)), int(math.Ceil(center.x+radius))
	minY, maxY := int(math.Floor(center.y-radius)), int(math.Ceil(center.y+radius))
	if minX < b.Min.X {
		minX = b.Min.X
	}
	if minY < b.Min.Y {
		minY = b.Min.Y
	}
	if maxX >= b.Max.X {
		maxX = b.Max.X - 1
	}
	if maxY >= b.Max.Y {
		maxY = b.Max.Y - 1
	}
	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := float64(x) + 0.5 - center.x
			dy := float64(y) + 0.5 - center.y
			if dx*dx+dy*dy <= r2 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func drawOpenCircle(img *image.NRGBA, c color.NRGBA, center point, radius float64) {
	steps := 24
	for s := 0; s < steps; s++ {
		a := 2 * math.Pi * float64(s) / float64(steps)
		p := point{x: center.x + radius*math.Cos(a), y: center.y + radius*math.Sin(a)}
		drawDisc(img, c, p, 0.8)
	}
}

func fillTriangle(img *image.NRGBA, c color.NRGBA, a, b, cc point) {
	minX := int(math.Floor(math.Min(a.x, math.Min(b.x, cc.x))))
	maxX := int(math.Ceil(math.Max(a.x, math.Max(b.x, cc.x))))
	minY := int(math.Floor(math.Min(a.y, math.Min(b.y, cc.y))))
	maxY := int(math.Ceil(math.Max(a.y, math.Max(b.y, cc.y))))
	bnd := img.Bounds()
	if minX < bnd.Min.X {
		minX = bnd.Min.X
	}
	if minY < bnd.Min.Y {
		minY = bnd.Min.Y
	}
	if maxX >= bnd.Max.X {
		maxX = bnd.Max.X - 1
	}
	if maxY >= bnd.Max.Y {
		maxY = bnd.Max.Y - 1
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := point{x: float64(x) + 0.5, y: float64(y) + 0.5}
			if pointInTriangle(p, a, b, cc) {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func sign(p1, p2, p3 point) float64 {
	return (p1.x-p3.x)*(p2.y-p3.y) - (p2.x-p3.x)*(p1.y-p3.y)
}

func pointInTriangle(p, a, b, c point) bool {
	d1 := sign(p, a, b)
	d2 := sign(p, b, c)
	d3 := sign(p, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}
