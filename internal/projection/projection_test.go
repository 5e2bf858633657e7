package projection

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weathertiles/core/internal/projection/lutfile"
)

func TestGeographicForwardReverseRoundTrip(t *testing.T) {
	g := &GeographicRegular{OriginLon: -180, OriginLat: 90, Dx: 0.25, Dy: -0.25}
	yf, xf := 40.0, 120.0
	lon, lat := g.Forward(yf, xf)
	gotYf, gotXf := g.Reverse(lon, lat)
	assert.InDelta(t, yf, gotYf, 1e-9)
	assert.InDelta(t, xf, gotXf, 1e-9)
}

func TestLambertForwardReverseRoundTrip(t *testing.T) {
	l := &LambertConformal{
		StdLat1: 33, StdLat2: 45, OriginLat: 25, OriginLon: -95,
		EarthRadiusM: 6371000, GridOriginX: -3000000, GridOriginY: -2000000,
		Dx: 3000, Dy: 3000,
	}
	yf, xf := 300.0, 500.0
	lon, lat := l.Forward(yf, xf)
	gotYf, gotXf := l.Reverse(lon, lat)
	assert.InDelta(t, yf, gotYf, 1e-6)
	assert.InDelta(t, xf, gotXf, 1e-6)
}

func TestGeostationaryForwardReverseRoundTrip(t *testing.T) {
	g := &Geostationary{
		SatelliteID: "goes-east", SubLonDeg: -75.2,
		PerspectiveHeightM: 35786023 + 6378137, SemiMajorM: 6378137, SemiMinorM: 6356752.31414,
		GridOriginX: -0.151844, GridOriginY: 0.151844,
		Dx: 0.0000560, Dy: -0.0000560,
	}
	yf, xf := 1000.0, 1200.0
	lon, lat := g.Forward(yf, xf)
	require.False(t, math.IsNaN(lon))
	require.False(t, math.IsNaN(lat))

	gotYf, gotXf := g.Reverse(lon, lat)
	assert.InDelta(t, yf, gotYf, 0.5)
	assert.InDelta(t, xf, gotXf, 0.5)
}

func TestDescriptorResolveDispatchesToSetVariant(t *testing.T) {
	d := Descriptor{Geographic: &GeographicRegular{Dx: 1, Dy: 1}}
	p := d.Resolve()
	require.NotNil(t, p)

	_, ok := p.(*GeographicRegular)
	assert.True(t, ok)
}

func TestWebMercatorForwardReverseRoundTrip(t *testing.T) {
	m := &WebMercator{Zoom: 8, Col: 130, Row: 85, TileSizePixels: 256}
	yf, xf := 100.0, 40.0
	lon, lat := m.Forward(yf, xf)
	gotYf, gotXf := m.Reverse(lon, lat)
	assert.InDelta(t, yf, gotYf, 1e-6)
	assert.InDelta(t, xf, gotXf, 1e-6)
}

func TestWebMercatorTileCornersMatchNeighboringTile(t *testing.T) {
	// The east edge of tile (z, x, y) must coincide with the west edge of
	// tile (z, x+1, y): no gaps or overlaps between adjacent tiles.
	left := &WebMercator{Zoom: 5, Col: 10, Row: 12, TileSizePixels: 256}
	right := &WebMercator{Zoom: 5, Col: 11, Row: 12, TileSizePixels: 256}

	lonLeftEdge, _ := left.Forward(0, 256)
	lonRightEdge, _ := right.Forward(0, 0)
	assert.InDelta(t, lonLeftEdge, lonRightEdge, 1e-9)
}

func TestWebMercatorDescriptorResolvesToWebMercator(t *testing.T) {
	d := Descriptor{WebMercator: &WebMercator{Zoom: 1, TileSizePixels: 256}}
	p := d.Resolve()
	require.NotNil(t, p)

	_, ok := p.(*WebMercator)
	assert.True(t, ok)
}

func TestLUTFallsBackOnMissingFile(t *testing.T) {
	lut := NewLUT(t.TempDir())
	_, _, ok := lut.Lookup("goes-east", 4, 0, 0, 0, 0)
	assert.False(t, ok)
}

func TestLUTEquivalenceWithinTolerance(t *testing.T) {
	// Build a tiny LUT for a single tile/pixel by evaluating the on-the-fly
	// projection, write+load it, and confirm Lookup agrees with Reverse to
	// within the default 0.5 source-pixel tolerance (testable property 9).
	g := &Geostationary{
		SatelliteID: "goes-east", SubLonDeg: -75.2,
		PerspectiveHeightM: 35786023 + 6378137, SemiMajorM: 6378137, SemiMinorM: 6356752.31414,
		GridOriginX: -0.151844, GridOriginY: 0.151844,
		Dx: 0.0000560, Dy: -0.0000560,
	}

	dir := t.TempDir()
	lut := NewLUT(dir)

	const zoom = 2
	tilesPerAxis := uint32(1) << zoom
	path := lut.path("goes-east", zoom)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tileSize := uint32(4) // keep the fixture tiny
	err = lutfile.Write(f, lutfile.Header{TilesPerAxis: tilesPerAxis, TileSize: tileSize},
		func(tr, tc, pi, pj uint32) (float64, float64, bool) {
			// Pixel center in a synthetic fixed-grid tile matrix set: map
			// (tr, tc, pi, pj) to the same scan-angle index space Forward uses.
			yf := float64(tr*tileSize + pi)
			xf := float64(tc*tileSize + pj)
			lon, lat := g.Forward(yf, xf)
			if math.IsNaN(lon) {
				return 0, 0, false
			}
			return yf, xf, true
		})
	require.NoError(t, err)

	gotYf, gotXf, ok := lut.Lookup("goes-east", zoom, 0, 0, 2, 3)
	require.True(t, ok)

	wantLon, wantLat := g.Forward(2, 3)
	wantYf, wantXf := g.Reverse(wantLon, wantLat)

	assert.InDelta(t, wantYf, gotYf, 0.5)
	assert.InDelta(t, wantXf, gotXf, 0.5)
}
