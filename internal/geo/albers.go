package geo

import "math"

const (
	radians = math.Pi / 180
	epsilon = 1e-6
)

// conic is an Albers equal-area conic with a rotation and a projected
// center, in scale-free units: scaling and translation happen in the
// composite so one fit serves every inset.
type conic struct {
	n, c, r0 float64
	rotate   float64 // radians added to longitude before projecting
	cx, cy   float64 // raw projection of the configured center
}

func newConic(parallel0, parallel1, rotateDeg, centerLon, centerLat float64) conic {
	sy0 := math.Sin(parallel0 * radians)
	n := (sy0 + math.Sin(parallel1*radians)) / 2
	c := 1 + sy0*(2*n-sy0)
	cn := conic{n: n, c: c, r0: math.Sqrt(c) / n, rotate: rotateDeg * radians}
	cn.cx, cn.cy = cn.raw(centerLon*radians, centerLat*radians)
	return cn
}

// raw projects radians without rotation.
func (cn conic) raw(lambda, phi float64) (float64, float64) {
	r := math.Sqrt(cn.c-2*cn.n*math.Sin(phi)) / cn.n
	x := lambda * cn.n
	return r * math.Sin(x), cn.r0 - r*math.Cos(x)
}

// project returns the position relative to the center, y pointing down.
func (cn conic) project(lon, lat float64) (float64, float64) {
	lambda := wrapLongitude(lon*radians + cn.rotate)
	x, y := cn.raw(lambda, lat*radians)
	return x - cn.cx, -(y - cn.cy)
}

func wrapLongitude(lambda float64) float64 {
	if lambda > math.Pi {
		return lambda - 2*math.Pi
	}
	if lambda < -math.Pi {
		return lambda + 2*math.Pi
	}
	return lambda
}

// inset is one piece of the Albers USA composite. Offsets, scales and clip
// boxes are multiples of the composite scale k.
type inset struct {
	proj           conic
	scale          float64
	offX, offY     float64
	x0, y0, x1, y1 float64
}

func (in inset) point(lon, lat float64) (float64, float64, bool) {
	px, py := in.proj.project(lon, lat)
	x := in.offX + in.scale*px
	y := in.offY + in.scale*py
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, false
	}
	if x < in.x0 || x > in.x1 || y < in.y0 || y > in.y1 {
		return 0, 0, false
	}
	return x, y, true
}

// albersUSA places the lower 48 states, Alaska and Hawaii in one frame.
// Output is in units of the composite scale with the lower-48 center at the
// origin.
var albersUSA = []inset{
	{
		proj:  newConic(29.5, 45.5, 96, -0.6, 38.7),
		scale: 1,
		x0:    -0.455, y0: -0.238, x1: 0.455, y1: 0.238,
	},
	{
		proj:  newConic(55, 65, 154, -2, 58.5),
		scale: 0.35,
		offX:  -0.307, offY: 0.201,
		x0: -0.425 + epsilon, y0: 0.120 + epsilon, x1: -0.214 - epsilon, y1: 0.234 - epsilon,
	},
	{
		proj:  newConic(8, 18, 157, -3, 19.9),
		scale: 1,
		offX:  -0.205, offY: 0.212,
		x0: -0.214 + epsilon, y0: 0.166 + epsilon, x1: -0.115 - epsilon, y1: 0.234 - epsilon,
	},
}

// projectUnit runs the composite in scale-free units. The first inset whose
// clip box accepts the point wins.
func projectUnit(lon, lat float64) (float64, float64, bool) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return 0, 0, false
	}
	for _, in := range albersUSA {
		if x, y, ok := in.point(lon, lat); ok {
			return x, y, true
		}
	}
	return 0, 0, false
}
