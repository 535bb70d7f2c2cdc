package zoom

import (
	"time"

	"github.com/couchcryptid/sightings-map/internal/anim"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultDuration is the click-to-zoom transition length.
const DefaultDuration = 750 * time.Millisecond

// transition is an in-flight animated transform change.
type transition struct {
	tween  anim.Tween
	sample func(t float64) domain.ViewTransform
}

func (tr *transition) at(now time.Time) (domain.ViewTransform, bool) {
	p, done := tr.tween.Progress(now)
	return tr.sample(p), done
}

// Controller owns a map's single ViewTransform and its region selection. It
// is not safe for concurrent use; the owning session loop serializes calls.
type Controller struct {
	clock    clockwork.Clock
	duration time.Duration
	onSelect func(region *string)

	state     State
	transform domain.ViewTransform
	active    *transition
}

// NewController returns an Idle controller at the identity transform.
// onSelect may be nil.
func NewController(vp domain.Viewport, clock clockwork.Clock, duration time.Duration, onSelect func(region *string)) *Controller {
	if duration < 0 {
		duration = 0
	}
	return &Controller{
		clock:     clock,
		duration:  duration,
		onSelect:  onSelect,
		state:     State{Viewport: vp},
		transform: domain.Identity,
	}
}

// State returns a snapshot of the toggle state.
func (c *Controller) State() State {
	return c.state
}

// Selected returns the focused region, nil while Idle.
func (c *Controller) Selected() *string {
	return c.state.Selected()
}

// Click forwards a region click. anchor is the pointer position, nil for the
// viewport center.
func (c *Controller) Click(region string, bounds domain.BBox, anchor *domain.Point) {
	c.dispatch(Event{Kind: ClickRegion, Region: region, Bounds: bounds, Anchor: anchor})
}

// Reset deselects and animates back to the identity transform.
func (c *Controller) Reset() {
	c.dispatch(Event{Kind: Deselect})
}

func (c *Controller) dispatch(ev Event) {
	next, fx := Reduce(c.state, ev)
	c.state = next
	if fx.Animate {
		c.animateTo(fx.Target, fx.Anchor)
	}
	if fx.Emit && c.onSelect != nil {
		c.onSelect(fx.Selected)
	}
}

func (c *Controller) animateTo(target domain.ViewTransform, anchor domain.Point) {
	now := c.clock.Now()
	from := c.TransformAt(now)
	if c.duration == 0 {
		c.active = nil
		c.transform = target
		return
	}
	c.active = &transition{
		tween:  anim.Tween{Start: now, Duration: c.duration},
		sample: transformPath(from, target, anchor, c.state.Viewport),
	}
	c.transform = target
}

// Pan translates the view by (dx, dy) screen pixels. It interrupts any
// running transition and leaves the selection untouched.
func (c *Controller) Pan(dx, dy float64) {
	if !finite(dx, dy) {
		return
	}
	t := c.settle()
	t.X += dx
	t.Y += dy
	c.transform = t
}

// ZoomBy multiplies the scale by factor about anchor, keeping the base-layer
// point under the anchor fixed. The result stays within [MinScale, MaxScale].
func (c *Controller) ZoomBy(factor float64, anchor domain.Point) {
	if !finite(factor, anchor.X, anchor.Y) || factor <= 0 {
		return
	}
	t := c.settle()
	base := t.Invert(anchor)
	k := domain.ClampScale(t.K * factor)
	c.transform = domain.ViewTransform{X: anchor.X - base.X*k, Y: anchor.Y - base.Y*k, K: k}
}

// settle freezes a running transition at the current instant.
func (c *Controller) settle() domain.ViewTransform {
	t := c.TransformAt(c.clock.Now())
	c.active = nil
	c.transform = t
	return t
}

// TransformAt samples the transform at now, mid-transition if one is running.
func (c *Controller) TransformAt(now time.Time) domain.ViewTransform {
	if c.active == nil {
		return c.transform
	}
	t, done := c.active.at(now)
	if done {
		c.active = nil
		c.transform = t
	}
	return sanitize(t)
}

// Transform is TransformAt for the controller's clock.
func (c *Controller) Transform() domain.ViewTransform {
	return c.TransformAt(c.clock.Now())
}

// Animating reports whether a transition is still running at now.
func (c *Controller) Animating(now time.Time) bool {
	if c.active == nil {
		return false
	}
	_, done := c.active.at(now)
	return !done
}

func sanitize(t domain.ViewTransform) domain.ViewTransform {
	if !finite(t.X, t.Y, t.K) {
		return domain.Identity
	}
	t.K = domain.ClampScale(t.K)
	return t
}

// Target returns where the view rests once any transition ends.
func (c *Controller) Target() domain.ViewTransform {
	return c.transform
}
