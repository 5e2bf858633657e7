package projection

import "math"

// WebMercator is the forward-projection case used for the WebMercatorQuad
// tile matrix set (the default the HTTP/CLI surface serves): it maps a
// tile's pixel grid to geographic coordinates under the standard spherical
// Web Mercator slippy-map convention, not a dataset's native grid — no
// source dataset in this domain is natively Web Mercator, so this variant
// only ever appears as resample.Bilinear's fwd argument, never as a
// catalog.Descriptor's Projection.
type WebMercator struct {
	Zoom           uint32
	Col, Row       uint32
	TileSizePixels int
}

func (m *WebMercator) tilesPerAxis() float64 { return float64(uint64(1) << m.Zoom) }

// Forward maps a tile-local pixel index (yf, xf) to (lon, lat) in degrees.
func (m *WebMercator) Forward(yf, xf float64) (lon, lat float64) {
	n := m.tilesPerAxis()
	ts := float64(m.TileSizePixels)
	xFrac := (float64(m.Col)*ts + xf) / (n * ts)
	yFrac := (float64(m.Row)*ts + yf) / (n * ts)

	lon = xFrac*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*yFrac)))
	lat = latRad * 180.0 / math.Pi
	return lon, lat
}

// Reverse maps (lon, lat) in degrees back to this tile's local pixel index.
func (m *WebMercator) Reverse(lon, lat float64) (yf, xf float64) {
	n := m.tilesPerAxis()
	ts := float64(m.TileSizePixels)

	xFrac := (lon + 180.0) / 360.0
	latRad := lat * math.Pi / 180.0
	yFrac := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2

	xf = xFrac*n*ts - float64(m.Col)*ts
	yf = yFrac*n*ts - float64(m.Row)*ts
	return yf, xf
}
