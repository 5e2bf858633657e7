package tile

import (
	"github.com/weathertiles/core/internal/geo"
	"github.com/weathertiles/core/internal/projection"
)

// WebMercatorQuad is the default tile matrix set ID: the standard
// slippy-map (EPSG:3857) quad tree every web map client already speaks,
// backed by the teacher's Coords/maptile bounds math.
const WebMercatorQuad = "WebMercatorQuad"

// EquirectangularGlobal is the alternate tile matrix set ID: a global
// plate-carrée grid with no polar distortion, offered for full-globe
// low-zoom layers (e.g. a hemispheric pressure or wind overlay) where
// Web Mercator's pole singularity is undesirable.
const EquirectangularGlobal = "EquirectangularGlobal"

// Bounds returns the geographic footprint of tile (zoom, col, row) under
// the named tile matrix set. Unknown IDs fall back to WebMercatorQuad.
func Bounds(tileMatrixSetID string, zoom, col, row uint32) geo.BoundingBox {
	if tileMatrixSetID == EquirectangularGlobal {
		return GeographicBounds(zoom, col, row)
	}
	return WebMercatorBounds(zoom, col, row)
}

// Descriptor returns the forward-projection descriptor mapping tile-pixel
// indices within tile (zoom, col, row) to geographic coordinates, for use
// as resample.Bilinear's fwd argument, under the named tile matrix set.
func Descriptor(tileMatrixSetID string, zoom, col, row uint32, tileSizePixels int) projection.Descriptor {
	if tileMatrixSetID == EquirectangularGlobal {
		return GeographicDescriptor(zoom, col, row, tileSizePixels)
	}
	return WebMercatorDescriptor(zoom, col, row, tileSizePixels)
}

// WebMercatorBounds returns tile (zoom, col, row)'s WGS84 footprint under
// the standard XYZ slippy-map convention, via the teacher's Coords type.
func WebMercatorBounds(zoom, col, row uint32) geo.BoundingBox {
	b := Coords{Z: zoom, X: col, Y: row}.Bounds()
	return geo.BoundingBox{MinLon: b[0], MinLat: b[1], MaxLon: b[2], MaxLat: b[3]}
}

// WebMercatorDescriptor returns the forward-projection descriptor for tile
// (zoom, col, row) under WebMercatorQuad, for use as resample.Bilinear's
// fwd argument.
func WebMercatorDescriptor(zoom, col, row uint32, tileSizePixels int) projection.Descriptor {
	return projection.Descriptor{WebMercator: &projection.WebMercator{
		Zoom: zoom, Col: col, Row: row, TileSizePixels: tileSizePixels,
	}}
}

// GeographicBounds returns the geographic footprint of tile (zoom, col, row)
// on an equirectangular (plate carrée) tile matrix spanning the whole globe
// with 2^zoom tiles per axis.
func GeographicBounds(zoom, col, row uint32) geo.BoundingBox {
	n := float64(uint64(1) << zoom)
	lonSpan := 360.0 / n
	latSpan := 180.0 / n
	minLon := -180.0 + float64(col)*lonSpan
	maxLat := 90.0 - float64(row)*latSpan
	return geo.BoundingBox{
		MinLon: minLon,
		MaxLon: minLon + lonSpan,
		MinLat: maxLat - latSpan,
		MaxLat: maxLat,
	}
}

// GeographicDescriptor returns the forward-projection descriptor mapping
// tile-pixel indices (row, col) within tile (zoom, col, row) to geographic
// coordinates, for use as resample.Bilinear's fwd argument.
func GeographicDescriptor(zoom, col, row uint32, tileSizePixels int) projection.Descriptor {
	b := GeographicBounds(zoom, col, row)
	return projection.Descriptor{
		Geographic: &projection.GeographicRegular{
			OriginLon: b.MinLon,
			OriginLat: b.MaxLat,
			Dx:        b.Width() / float64(tileSizePixels),
			Dy:        -b.Height() / float64(tileSizePixels),
		},
	}
}
