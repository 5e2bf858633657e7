// Package render turns a resampled grid (plus mask) into RGBA tile pixels,
// per spec.md §4.6. Exactly one Style variant is set per request; dispatch
// happens once per build, never inside a renderer's inner pixel loop.
package render

// ColorStop is one control point of a Gradient colormap: a sample value
// and the RGBA color assigned to it.
type ColorStop struct {
	Value float64
	R, G, B, A uint8
}

// Colormap is an ordered list of ColorStop, increasing by Value.
type Colormap []ColorStop

// Gradient renders the resampled grid through piecewise-linear RGBA
// interpolation between bracketing control points.
type Gradient struct {
	Colormap Colormap
	// ToDisplayUnit converts a native sample value to the unit the
	// colormap's stops are expressed in. Nil means no conversion.
	ToDisplayUnit func(native float64) float64
}

// Isolines renders contour lines at the given sample values.
type Isolines struct {
	Levels     []float64
	LabelEvery int // label every Nth contour; 0 disables labels
	Width      float64
}

// WindBarbs renders a lattice of wind-barb glyphs from a pair of resampled
// grids (u, v components).
type WindBarbs struct {
	Spacing       int // lattice spacing in tile pixels, default 24
	SpeedThreshold float64 // below this, draw an open circle; default 3
	ToDisplayUnit  func(native float64) float64
}

// Style is the tagged variant carried by a layer's render request.
// Exactly one field is non-nil.
type Style struct {
	Gradient  *Gradient
	Isolines  *Isolines
	WindBarbs *WindBarbs
}
