package zoom

import (
	"math"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

const (
	rho  = math.Sqrt2
	rho2 = 2.0
	rho4 = 4.0
	eps2 = 1e-12
)

// view is a viewport center (ux, uy) and width w in base-layer units.
type view struct{ ux, uy, w float64 }

// smoothZoom returns the van Wijk and Nuij optimal path between two views.
func smoothZoom(a, b view) func(t float64) view {
	dx, dy := b.ux-a.ux, b.uy-a.uy
	d2 := dx*dx + dy*dy

	if d2 < eps2 {
		s := math.Log(b.w/a.w) / rho
		return func(t float64) view {
			return view{a.ux + t*dx, a.uy + t*dy, a.w * math.Exp(rho*t*s)}
		}
	}

	d1 := math.Sqrt(d2)
	b0 := (b.w*b.w - a.w*a.w + rho4*d2) / (2 * a.w * rho2 * d1)
	b1 := (b.w*b.w - a.w*a.w - rho4*d2) / (2 * b.w * rho2 * d1)
	r0 := math.Log(math.Sqrt(b0*b0+1) - b0)
	r1 := math.Log(math.Sqrt(b1*b1+1) - b1)
	s := (r1 - r0) / rho
	coshr0 := math.Cosh(r0)

	return func(t float64) view {
		st := t * s
		u := a.w / (rho2 * d1) * (coshr0*math.Tanh(rho*st+r0) - math.Sinh(r0))
		return view{a.ux + u*dx, a.uy + u*dy, a.w * coshr0 / math.Cosh(rho*st+r0)}
	}
}

// transformPath interpolates between two transforms about anchor p, keeping
// p's base-layer point on screen while zooming. Every sampled scale is
// clamped to [MinScale, MaxScale].
func transformPath(from, to domain.ViewTransform, p domain.Point, vp domain.Viewport) func(t float64) domain.ViewTransform {
	w := math.Max(vp.Width, vp.Height)
	fa := from.Invert(p)
	ta := to.Invert(p)
	path := smoothZoom(view{fa.X, fa.Y, w / from.K}, view{ta.X, ta.Y, w / to.K})

	return func(t float64) domain.ViewTransform {
		if t >= 1 {
			return to
		}
		if t <= 0 {
			return from
		}
		l := path(t)
		k := domain.ClampScale(w / l.w)
		return domain.ViewTransform{X: p.X - l.ux*k, Y: p.Y - l.uy*k, K: k}
	}
}
