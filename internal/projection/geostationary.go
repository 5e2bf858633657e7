package projection

import "math"

// Geostationary describes the GOES-style fixed-grid geostationary
// projection: grid index maps linearly to east-west/north-south scan
// angles (radians), which relate to (lon, lat) via the satellite's
// viewing geometry. This is the "trig-heavy" case spec.md §4.5 calls out
// (~18 ops/pixel) and the one the LUT in lut.go exists to short-circuit.
type Geostationary struct {
	SatelliteID        string
	SubLonDeg          float64 // satellite's sub-longitude, degrees
	PerspectiveHeightM float64 // distance from earth center to satellite, meters
	SemiMajorM         float64 // equatorial radius, meters
	SemiMinorM         float64 // polar radius, meters

	GridOriginX, GridOriginY float64 // scan angle (radians) at grid index (0, 0)
	Dx, Dy                   float64 // radians per column / per row
}

func (g *Geostationary) Forward(yf, xf float64) (lon, lat float64) {
	x := g.GridOriginX + xf*g.Dx
	y := g.GridOriginY + yf*g.Dy

	req := g.SemiMajorM
	rpol := g.SemiMinorM
	h := g.PerspectiveHeightM

	cosX, sinX := math.Cos(x), math.Sin(x)
	cosY, sinY := math.Cos(y), math.Sin(y)

	a := sinX*sinX + cosX*cosX*(cosY*cosY+(req*req/(rpol*rpol))*sinY*sinY)
	b := -2 * h * cosX * cosY
	c := h*h - req*req

	disc := b*b - 4*a*c
	if disc < 0 {
		return math.NaN(), math.NaN() // scan angle points off the earth's limb
	}
	rs := (-b - math.Sqrt(disc)) / (2 * a)

	sx := rs * cosX * cosY
	sy := -rs * sinX
	sz := rs * cosX * sinY

	lat = radToDeg(math.Atan((req * req / (rpol * rpol)) * (sz / math.Sqrt((h-sx)*(h-sx)+sy*sy))))
	lon = g.SubLonDeg - radToDeg(math.Atan(sy/(h-sx)))
	return lon, lat
}

func (g *Geostationary) Reverse(lon, lat float64) (yf, xf float64) {
	req := g.SemiMajorM
	rpol := g.SemiMinorM
	h := g.PerspectiveHeightM
	eccSq := 1 - (rpol*rpol)/(req*req)

	phi := degToRad(lat)
	lambda := degToRad(lon - g.SubLonDeg)

	phiC := math.Atan((rpol * rpol / (req * req)) * math.Tan(phi))
	rc := rpol / math.Sqrt(1-eccSq*math.Cos(phiC)*math.Cos(phiC))

	sx := h - rc*math.Cos(phiC)*math.Cos(lambda)
	sy := -rc * math.Cos(phiC) * math.Sin(lambda)
	sz := rc * math.Sin(phiC)

	y := math.Atan(sz / sx)
	x := math.Asin(-sy / math.Sqrt(sx*sx+sy*sy+sz*sz))

	xf = (x - g.GridOriginX) / g.Dx
	yf = (y - g.GridOriginY) / g.Dy
	return yf, xf
}
