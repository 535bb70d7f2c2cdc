// Package zoom owns the view transform of a map and its click-to-focus
// region toggle.
package zoom

import (
	"math"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// Padding leaves a 10% margin around a focused region.
const Padding = 0.9

// Epsilon floors the fit denominator for degenerate bounding boxes.
const Epsilon = 1e-9

// Phase is the toggle state of the controller.
type Phase int

const (
	Idle Phase = iota
	Focused
)

func (p Phase) String() string {
	if p == Focused {
		return "focused"
	}
	return "idle"
}

// State is the reducer's state slot. Region is empty while Idle.
type State struct {
	Viewport domain.Viewport
	Phase    Phase
	Region   string
}

// Selected returns the focused region, nil while Idle.
func (s State) Selected() *string {
	if s.Phase != Focused {
		return nil
	}
	r := s.Region
	return &r
}

// EventKind distinguishes reducer inputs.
type EventKind int

const (
	ClickRegion EventKind = iota
	Deselect
)

// Event is a reducer input. Bounds is the clicked region's projected box and
// Anchor the pointer position, if any.
type Event struct {
	Kind   EventKind
	Region string
	Bounds domain.BBox
	Anchor *domain.Point
}

// Effects are what the controller must apply after a reduction.
type Effects struct {
	// Animate requests a transition to Target about Anchor.
	Animate bool
	Target  domain.ViewTransform
	Anchor  domain.Point
	// Emit requests onRegionSelected(Selected).
	Emit     bool
	Selected *string
}

// Reduce is the click-toggle state machine. It never mutates s.
func Reduce(s State, ev Event) (State, Effects) {
	anchor := s.Viewport.Center()
	if ev.Anchor != nil {
		anchor = *ev.Anchor
	}

	switch ev.Kind {
	case ClickRegion:
		if s.Phase == Focused && s.Region == ev.Region {
			next := State{Viewport: s.Viewport, Phase: Idle}
			return next, Effects{Animate: true, Target: domain.Identity, Anchor: anchor, Emit: true}
		}
		next := State{Viewport: s.Viewport, Phase: Focused, Region: ev.Region}
		return next, Effects{
			Animate:  true,
			Target:   Fit(ev.Bounds, s.Viewport),
			Anchor:   anchor,
			Emit:     true,
			Selected: next.Selected(),
		}
	case Deselect:
		next := State{Viewport: s.Viewport, Phase: Idle}
		return next, Effects{Animate: true, Target: domain.Identity, Anchor: anchor, Emit: s.Phase == Focused}
	}
	return s, Effects{}
}

// Fit returns the transform that centers b in vp, scaled so the larger
// relative extent fills Padding of the viewport, clamped to [MinScale, MaxScale].
func Fit(b domain.BBox, vp domain.Viewport) domain.ViewTransform {
	if b.IsEmpty() || !finite(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y) {
		return domain.Identity
	}
	den := math.Max(b.Width()/vp.Width, b.Height()/vp.Height)
	if !(den > Epsilon) {
		den = Epsilon
	}
	k := domain.ClampScale(Padding / den)
	c := b.Center()
	return domain.ViewTransform{X: vp.Width/2 - k*c.X, Y: vp.Height/2 - k*c.Y, K: k}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
