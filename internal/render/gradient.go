package render

import (
	"image"
	"image/color"
	"sort"

	"github.com/weathertiles/core/internal/resample"
)

// sortedStops returns cm sorted by Value; Colormap is documented as
// already increasing, but a defensive sort keeps interpolation correct
// even if a caller hands in an unordered manifest entry.
func sortedStops(cm Colormap) Colormap {
	out := make(Colormap, len(cm))
	copy(out, cm)
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// colorAt performs the piecewise-linear RGBA interpolation of spec.md §4.6:
// values below the first stop or above the last are clamped to the
// endpoint color.
func colorAt(cm Colormap, v float64) color.NRGBA {
	if len(cm) == 0 {
		return color.NRGBA{}
	}
	if v <= cm[0].Value {
		return stopColor(cm[0])
	}
	last := cm[len(cm)-1]
	if v >= last.Value {
		return stopColor(last)
	}
	for i := 0; i < len(cm)-1; i++ {
		lo, hi := cm[i], cm[i+1]
		if v >= lo.Value && v <= hi.Value {
			span := hi.Value - lo.Value
			if span == 0 {
				return stopColor(lo)
			}
			t := (v - lo.Value) / span
			return color.NRGBA{
				R: lerp8(lo.R, hi.R, t),
				G: lerp8(lo.G, hi.G, t),
				B: lerp8(lo.B, hi.B, t),
				A: lerp8(lo.A, hi.A, t),
			}
		}
	}
	return stopColor(last)
}

func stopColor(s ColorStop) color.NRGBA {
	return color.NRGBA{R: s.R, G: s.G, B: s.B, A: s.A}
}

func lerp8(a, b uint8, t float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*t
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// RenderGradient maps each valid sample of g through the gradient's
// colormap; masked-invalid pixels are left fully transparent.
func RenderGradient(g *resample.ResampledGrid, style *Gradient) *image.NRGBA {
	cm := sortedStops(style.Colormap)
	img := image.NewNRGBA(image.Rect(0, 0, g.Size, g.Size))

	for i := 0; i < g.Size; i++ {
		for j := 0; j < g.Size; j++ {
			idx := i*g.Size + j
			if !g.Valid[idx] {
				continue // already transparent (zero alpha)
			}
			v := float64(g.Data[idx])
			if style.ToDisplayUnit != nil {
				v = style.ToDisplayUnit(v)
			}
			c := colorAt(cm, v)
			off := img.PixOffset(j, i)
			img.Pix[off+0] = c.R
			img.Pix[off+1] = c.G
			img.Pix[off+2] = c.B
			img.Pix[off+3] = c.A
		}
	}
	return img
}
