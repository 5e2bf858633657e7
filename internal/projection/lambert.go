package projection

import "math"

// LambertConformal describes a Lambert Conformal Conic grid with two
// standard parallels. Grid index (yf, xf) maps linearly to projected
// meters (x, y), which in turn relate to (lon, lat) via the standard LCC
// formulas.
type LambertConformal struct {
	StdLat1, StdLat2 float64 // standard parallels, degrees
	OriginLat        float64 // latitude of the projection origin, degrees
	OriginLon        float64 // central meridian, degrees
	EarthRadiusM     float64 // sphere radius used by the projection, meters

	GridOriginX, GridOriginY float64 // projected meters at grid index (0, 0)
	Dx, Dy                   float64 // meters per column / per row
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func (l *LambertConformal) conicConstants() (n, f, rho0 float64) {
	phi1 := degToRad(l.StdLat1)
	phi2 := degToRad(l.StdLat2)
	phi0 := degToRad(l.OriginLat)
	r := l.EarthRadiusM

	if math.Abs(phi1-phi2) < 1e-9 {
		n = math.Sin(phi1)
	} else {
		n = math.Log(math.Cos(phi1)/math.Cos(phi2)) /
			math.Log(math.Tan(math.Pi/4+phi2/2)/math.Tan(math.Pi/4+phi1/2))
	}
	f = math.Cos(phi1) * math.Pow(math.Tan(math.Pi/4+phi1/2), n) / n
	rho0 = r * f / math.Pow(math.Tan(math.Pi/4+phi0/2), n)
	return n, f, rho0
}

// projectedXY converts (lon, lat) to projected meters.
func (l *LambertConformal) projectedXY(lon, lat float64) (x, y float64) {
	n, f, rho0 := l.conicConstants()
	phi := degToRad(lat)
	lambda := degToRad(lon)
	lambda0 := degToRad(l.OriginLon)

	rho := l.EarthRadiusM * f / math.Pow(math.Tan(math.Pi/4+phi/2), n)
	theta := n * (lambda - lambda0)

	x = rho * math.Sin(theta)
	y = rho0 - rho*math.Cos(theta)
	return x, y
}

// lonLat converts projected meters back to (lon, lat).
func (l *LambertConformal) lonLat(x, y float64) (lon, lat float64) {
	n, f, rho0 := l.conicConstants()
	lambda0 := degToRad(l.OriginLon)

	dy := rho0 - y
	rho := math.Copysign(math.Sqrt(x*x+dy*dy), n)
	theta := math.Atan2(x, dy)

	phi := 2*math.Atan(math.Pow(l.EarthRadiusM*f/rho, 1/n)) - math.Pi/2
	lambda := lambda0 + theta/n

	return radToDeg(lambda), radToDeg(phi)
}

func (l *LambertConformal) Forward(yf, xf float64) (lon, lat float64) {
	x := l.GridOriginX + xf*l.Dx
	y := l.GridOriginY + yf*l.Dy
	return l.lonLat(x, y)
}

func (l *LambertConformal) Reverse(lon, lat float64) (yf, xf float64) {
	x, y := l.projectedXY(lon, lat)
	xf = (x - l.GridOriginX) / l.Dx
	yf = (y - l.GridOriginY) / l.Dy
	return yf, xf
}
