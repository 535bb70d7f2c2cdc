package domain

import (
	"fmt"
	"math"
)

// Point is a position in screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LonLat is a WGS-84 position in degrees.
type LonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ring is a closed sequence of positions; the closing vertex may be omitted.
type Ring []LonLat

// Polygon is an outer ring followed by zero or more holes.
type Polygon []Ring

// BBox is an axis-aligned screen rectangle [Min, Max].
type BBox struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// EmptyBBox returns a box that any Extend call will replace.
func EmptyBBox() BBox {
	return BBox{
		Min: Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

// Extend grows the box to include p.
func (b BBox) Extend(p Point) BBox {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	return b
}

// IsEmpty reports whether no point was ever added.
func (b BBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y
}

// Width returns the horizontal extent, zero for an empty box.
func (b BBox) Width() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Max.X - b.Min.X
}

// Height returns the vertical extent, zero for an empty box.
func (b BBox) Height() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Max.Y - b.Min.Y
}

// Center returns the midpoint of the box.
func (b BBox) Center() Point {
	return Point{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// RegionFeature is a named polygon set from the base topology. Bounds is the
// projected bounding box, filled in by the projector.
type RegionFeature struct {
	Name     string    `json:"name"`
	Polygons []Polygon `json:"-"`
	Bounds   BBox      `json:"bounds"`
}

// Viewport is the fixed pixel size a projection is fitted to.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultViewport matches the dashboard's map canvas.
var DefaultViewport = Viewport{Width: 975, Height: 610}

// Center returns the middle of the viewport.
func (v Viewport) Center() Point {
	return Point{X: v.Width / 2, Y: v.Height / 2}
}

// Scale bounds shared by every zoomable map.
const (
	MinScale = 1.0
	MaxScale = 8.0
)

// ViewTransform is a uniform scale followed by a translation:
// screen = K*p + (X, Y).
type ViewTransform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the untransformed view.
var Identity = ViewTransform{K: 1}

// Apply maps a base-layer point to screen space.
func (t ViewTransform) Apply(p Point) Point {
	return Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a screen point back to base-layer space.
func (t ViewTransform) Invert(p Point) Point {
	return Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// IsIdentity reports whether the transform is the identity.
func (t ViewTransform) IsIdentity() bool {
	return t.K == 1 && t.X == 0 && t.Y == 0
}

// SVG renders the transform as an SVG transform attribute value.
func (t ViewTransform) SVG() string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)", FormatCoord(t.X), FormatCoord(t.Y), FormatCoord(t.K))
}

// ClampScale limits k to [MinScale, MaxScale]. NaN collapses to MinScale.
func ClampScale(k float64) float64 {
	if math.IsNaN(k) || k < MinScale {
		return MinScale
	}
	if k > MaxScale {
		return MaxScale
	}
	return k
}
