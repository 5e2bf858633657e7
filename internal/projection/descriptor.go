// Package projection implements the tagged-variant projection descriptors
// of spec.md §3/§4.5: forward (pixel → geographic) and reverse (geographic →
// source-grid index) mappings for the three grid layouts the catalog can
// describe. Dispatch happens once per tile build, never inside the
// resampler's inner pixel loop (spec.md §9).
package projection

// Descriptor is the tagged variant carried by a dataset descriptor, or (for
// WebMercator) by the render path's own tile matrix set. Exactly one field
// is non-nil.
type Descriptor struct {
	Geographic    *GeographicRegular
	Lambert       *LambertConformal
	Geostationary *Geostationary
	WebMercator   *WebMercator
}

// Projector is implemented by each concrete case.
type Projector interface {
	// Forward maps a source-grid floating point index (yf, xf) to
	// geographic (lon, lat).
	Forward(yf, xf float64) (lon, lat float64)
	// Reverse maps geographic (lon, lat) to a source-grid floating point
	// index (yf, xf).
	Reverse(lon, lat float64) (yf, xf float64)
}

// Resolve returns the concrete Projector carried by d.
func (d Descriptor) Resolve() Projector {
	switch {
	case d.Geographic != nil:
		return d.Geographic
	case d.Lambert != nil:
		return d.Lambert
	case d.Geostationary != nil:
		return d.Geostationary
	case d.WebMercator != nil:
		return d.WebMercator
	default:
		return nil
	}
}
