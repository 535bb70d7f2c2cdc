// Package geo projects WGS-84 coordinates onto a fixed US map viewport and
// builds SVG path data for region fills and shared borders.
package geo

import (
	"math"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// defaultScale is used when the topology has nothing to fit.
const defaultScale = 1070

// Projector maps (lon, lat) to viewport pixels. The fit is computed once in
// New; pan and zoom are applied downstream as a ViewTransform and never
// re-project. A Projector is immutable and safe for concurrent use.
type Projector struct {
	viewport domain.Viewport
	k        float64
	tx, ty   float64

	regions []domain.RegionFeature
	paths   []string
	index   map[string]int
	mesh    string
}

// New fits the Albers USA composite so the union of all regions inscribes
// the viewport with uniform scaling, then precomputes every region path, its
// bounding box, and the shared-border mesh.
func New(regions []domain.RegionFeature, vp domain.Viewport) *Projector {
	p := &Projector{
		viewport: vp,
		regions:  make([]domain.RegionFeature, len(regions)),
		paths:    make([]string, len(regions)),
		index:    make(map[string]int, len(regions)),
	}
	copy(p.regions, regions)
	p.fit()

	for i := range p.regions {
		p.index[p.regions[i].Name] = i
		p.paths[i], p.regions[i].Bounds = p.trace(p.regions[i])
	}
	p.mesh = p.buildMesh()
	return p
}

func (p *Projector) fit() {
	b := domain.EmptyBBox()
	for _, r := range p.regions {
		for _, poly := range r.Polygons {
			for _, ring := range poly {
				for _, c := range ring {
					if x, y, ok := projectUnit(c.Lon, c.Lat); ok {
						b = b.Extend(domain.Point{X: x, Y: y})
					}
				}
			}
		}
	}

	if b.IsEmpty() || b.Width() == 0 || b.Height() == 0 {
		p.k = defaultScale
		p.tx, p.ty = p.viewport.Width/2, p.viewport.Height/2
		return
	}

	p.k = math.Min(p.viewport.Width/b.Width(), p.viewport.Height/b.Height())
	p.tx = (p.viewport.Width - p.k*(b.Min.X+b.Max.X)) / 2
	p.ty = (p.viewport.Height - p.k*(b.Min.Y+b.Max.Y)) / 2
}

// Project returns the pixel position of a coordinate. ok is false when the
// coordinate falls outside every inset (non-US locations, NaN input); such
// points must not be drawn.
func (p *Projector) Project(lon, lat float64) (pt domain.Point, ok bool) {
	x, y, ok := projectUnit(lon, lat)
	if !ok {
		return domain.Point{}, false
	}
	return domain.Point{X: p.tx + p.k*x, Y: p.ty + p.k*y}, true
}

// PathFor returns SVG path data for a region's polygons.
func (p *Projector) PathFor(region domain.RegionFeature) string {
	if i, ok := p.index[region.Name]; ok {
		return p.paths[i]
	}
	d, _ := p.trace(region)
	return d
}

// MeshPath returns the interior borders shared by two distinct regions, each
// drawn once.
func (p *Projector) MeshPath() string {
	return p.mesh
}

// Regions returns the fitted regions in topology order, bounds included.
func (p *Projector) Regions() []domain.RegionFeature {
	out := make([]domain.RegionFeature, len(p.regions))
	copy(out, p.regions)
	return out
}

// Region looks up a fitted region by name.
func (p *Projector) Region(name string) (domain.RegionFeature, bool) {
	i, ok := p.index[name]
	if !ok {
		return domain.RegionFeature{}, false
	}
	return p.regions[i], true
}

// Viewport returns the size the projection was fitted to.
func (p *Projector) Viewport() domain.Viewport {
	return p.viewport
}

// Scale returns the fitted composite scale.
func (p *Projector) Scale() float64 {
	return p.k
}

// trace builds path data and the projected bounds of a region. Vertices
// that do not project are dropped; rings left with fewer than three vertices
// are skipped.
func (p *Projector) trace(region domain.RegionFeature) (string, domain.BBox) {
	var sb strings.Builder
	bounds := domain.EmptyBBox()
	pts := make([]domain.Point, 0, 64)

	for _, poly := range region.Polygons {
		for _, ring := range poly {
			pts = pts[:0]
			for _, c := range ring {
				if pt, ok := p.Project(c.Lon, c.Lat); ok {
					pts = append(pts, pt)
				}
			}
			if n := len(pts); n > 1 && pts[0] == pts[n-1] {
				pts = pts[:n-1]
			}
			if len(pts) < 3 {
				continue
			}
			for i, pt := range pts {
				if i == 0 {
					sb.WriteByte('M')
				} else {
					sb.WriteByte('L')
				}
				writePoint(&sb, pt)
				bounds = bounds.Extend(pt)
			}
			sb.WriteByte('Z')
		}
	}
	return sb.String(), bounds
}

func writePoint(sb *strings.Builder, pt domain.Point) {
	sb.WriteString(domain.FormatCoord(pt.X))
	sb.WriteByte(',')
	sb.WriteString(domain.FormatCoord(pt.Y))
}
