package projection

// GeographicRegular describes a regular lat/lon grid: row index maps
// linearly to latitude, column index maps linearly to longitude.
type GeographicRegular struct {
	OriginLon, OriginLat float64 // geographic coordinate of index (0, 0)
	Dx, Dy               float64 // degrees per column / per row; Dy is negative when row 0 is the northernmost row
}

func (g *GeographicRegular) Forward(yf, xf float64) (lon, lat float64) {
	lon = g.OriginLon + xf*g.Dx
	lat = g.OriginLat + yf*g.Dy
	return lon, lat
}

func (g *GeographicRegular) Reverse(lon, lat float64) (yf, xf float64) {
	xf = (lon - g.OriginLon) / g.Dx
	yf = (lat - g.OriginLat) / g.Dy
	return yf, xf
}
