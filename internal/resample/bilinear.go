// Package resample implements the forward/reverse pixel resampling of
// spec.md §4.5: for each output tile pixel, project its center through the
// tile matrix set's own projection to geographic coordinates, then reverse
// through the dataset's projection descriptor to a source-grid floating
// point index, and bilinearly interpolate the four surrounding samples.
package resample

import (
	"errors"
	"image"
	"math"

	"github.com/weathertiles/core/internal/engine/errkind"
	"github.com/weathertiles/core/internal/grid"
	"github.com/weathertiles/core/internal/projection"
)

var errNilProjector = errors.New("resample: fwd and rev descriptors must both resolve to a projector")

// ResampledGrid is a dense tileSize × tileSize array in tile-pixel space,
// produced by bilinear sampling of a grid.SourceRegion.
type ResampledGrid struct {
	Data  []float32 // row-major, length == Size*Size
	Valid []bool    // same shape; false means transparent
	Size  int
}

// At returns the value and validity of pixel (i, j).
func (g *ResampledGrid) At(i, j int) (float32, bool) {
	idx := i*g.Size + j
	return g.Data[idx], g.Valid[idx]
}

func (g *ResampledGrid) set(i, j int, v float32, valid bool) {
	idx := i*g.Size + j
	g.Data[idx] = v
	g.Valid[idx] = valid
}

// Bounds returns the pixel rectangle [0,0)-[Size,Size) this grid covers.
func (g *ResampledGrid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Size, g.Size)
}

// Bilinear resamples src into a tileSize × tileSize grid. fwd is the tile
// matrix set's own projection descriptor (pixel center → geographic); rev
// is the source dataset's projection descriptor (geographic → source-grid
// index). Pixel (i, j)'s center is (i+0.5, j+0.5) in both spaces, so the
// forward projection and any reverse-lookup consulted elsewhere for the
// same pixel agree on the same anchor (spec.md §3's half-pixel invariant).
//
// lut, when non-nil and rev resolves to a Geostationary descriptor,
// substitutes steps 1-2 (the fwd.Forward/rev.Reverse pair above) with a
// precomputed table lookup keyed by (satellite_id, zoom, tile col/row,
// pixel), per spec.md §4.5. A miss (no table for this key, or an
// undefined/out-of-footprint pixel) falls back to the on-the-fly
// projection for that one pixel.
func Bilinear(src *grid.SourceRegion, tileSize int, fwd, rev projection.Descriptor, lut *projection.LUT, zoom, col, row uint32) (*ResampledGrid, error) {
	fwdProj := fwd.Resolve()
	revProj := rev.Resolve()
	if fwdProj == nil || revProj == nil {
		return nil, errkind.New(errkind.Internal, errNilProjector)
	}

	var satelliteID string
	useLUT := lut != nil && rev.Geostationary != nil
	if useLUT {
		satelliteID = rev.Geostationary.SatelliteID
	}

	out := &ResampledGrid{
		Data:  make([]float32, tileSize*tileSize),
		Valid: make([]bool, tileSize*tileSize),
		Size:  tileSize,
	}

	for i := 0; i < tileSize; i++ {
		for j := 0; j < tileSize; j++ {
			var yf, xf float64
			var hit bool
			if useLUT {
				yf, xf, hit = lut.Lookup(satelliteID, zoom, col, row, uint32(i), uint32(j))
			}
			if !hit {
				lon, lat := fwdProj.Forward(float64(i)+0.5, float64(j)+0.5)
				yf, xf = revProj.Reverse(lon, lat)
			}

			v, ok := sampleBilinear(src, yf, xf)
			out.set(i, j, v, ok)
		}
	}

	return out, nil
}

// sampleBilinear interpolates src at floating-point source-grid index
// (yf, xf), per spec.md §4.5 steps 3-4: any masked-invalid or out-of-bounds
// neighbor makes the whole sample transparent, with no fallback.
func sampleBilinear(src *grid.SourceRegion, yf, xf float64) (float32, bool) {
	if math.IsNaN(yf) || math.IsNaN(xf) {
		return 0, false
	}

	y0 := int(math.Floor(yf))
	x0 := int(math.Floor(xf))
	y1, x1 := y0+1, x0+1

	dy := yf - float64(y0)
	dx := xf - float64(x0)

	v00, ok00 := src.Sample(y0, x0)
	v01, ok01 := src.Sample(y0, x1)
	v10, ok10 := src.Sample(y1, x0)
	v11, ok11 := src.Sample(y1, x1)
	if !ok00 || !ok01 || !ok10 || !ok11 {
		return 0, false
	}

	top := float64(v00)*(1-dx) + float64(v01)*dx
	bottom := float64(v10)*(1-dx) + float64(v11)*dx
	return float32(top*(1-dy) + bottom*dy), true
}
