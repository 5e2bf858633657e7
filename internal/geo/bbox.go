// Package geo provides the small geographic primitives shared across the
// catalog, grid reader, and projection packages.
package geo

import "fmt"

// BoundingBox is a geographic bounding box in WGS84 (EPSG:4326).
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Width returns the width of the bounding box in degrees.
func (b BoundingBox) Width() float64 { return b.MaxLon - b.MinLon }

// Height returns the height of the bounding box in degrees.
func (b BoundingBox) Height() float64 { return b.MaxLat - b.MinLat }

// ExpandByFraction grows the box on every side by fraction*dimension/2,
// used to pad a tile's geographic footprint by one source pixel before
// reading the chunked grid (spec.md §4.4 step 1).
func (b BoundingBox) ExpandByFraction(fraction float64) BoundingBox {
	if fraction == 0 {
		return b
	}
	dLon := b.Width() * fraction / 2
	dLat := b.Height() * fraction / 2
	return BoundingBox{
		MinLon: b.MinLon - dLon,
		MaxLon: b.MaxLon + dLon,
		MinLat: b.MinLat - dLat,
		MaxLat: b.MaxLat + dLat,
	}
}

// Corners returns the four corners of the box in (lon, lat) pairs, in the
// order the chunked grid reader projects them: SW, SE, NE, NW.
func (b BoundingBox) Corners() [4][2]float64 {
	return [4][2]float64{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
	}
}
