package points

import (
	"image/color"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/couchcryptid/sightings-map/internal/aggregate"
	"github.com/couchcryptid/sightings-map/internal/anim"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/scheduler"
	"github.com/jonboulle/clockwork"
)

// DefaultBatchSize is the number of points drawn per frame.
const DefaultBatchSize = 200

// Draw layers emitted by the renderer.
const (
	LayerMap    = "sightings"
	LayerStates = "sightings/states"
	LayerPoints = "sightings/points"
)

// BaseMap is the background the points are drawn over.
type BaseMap interface {
	Projector
	Regions() []domain.RegionFeature
	PathFor(region domain.RegionFeature) string
}

// TransformSource supplies the pan/zoom transform shared with the base map.
type TransformSource interface {
	TransformAt(now time.Time) domain.ViewTransform
}

// ClickResult reports how a point click was handled.
type ClickResult struct {
	Handled bool `json:"handled"`
	// StopPropagation tells the caller not to forward the click to the
	// map's pan/zoom handler.
	StopPropagation bool `json:"stop_propagation"`
}

type drawn struct {
	Point
	hovered bool
	// from is the radius and fill the hover tween started at.
	fromR    float64
	fromFill color.RGBA
	tween    anim.Tween
}

// Renderer draws the sighting points in batches. It is owned by one session
// loop; batch continuations are posted back to that loop.
type Renderer struct {
	base      BaseMap
	view      TransformSource
	loop      scheduler.Poster
	clock     clockwork.Clock
	style     config.Style
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
	onSelect  func(id int64)

	fill, hoverFill color.RGBA

	sampling Sampling
	rng      *rand.Rand

	mounted    bool
	generation uint64
	active     Sampling
	pending    []Point
	next       int
	points     []drawn
	index      map[int64]int
}

// New creates an unmounted renderer. rng is only consulted when sampling
// uses RandomBucket; onSelect may be nil.
func New(base BaseMap, view TransformSource, loop scheduler.Poster, clock clockwork.Clock, style config.Style,
	batchSize int, sampling Sampling, rng *rand.Rand, logger *slog.Logger, metrics *observability.Metrics, onSelect func(id int64),
) *Renderer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	fill := parseColor(style.PointFill, config.DefaultStyle().PointFill, logger)
	hoverFill := parseColor(style.PointHoverFill, config.DefaultStyle().PointHoverFill, logger)
	return &Renderer{
		base:      base,
		view:      view,
		loop:      loop,
		clock:     clock,
		style:     style,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
		onSelect:  onSelect,
		fill:      fill,
		hoverFill: hoverFill,
		sampling:  sampling,
		rng:       rng,
		index:     map[int64]int{},
	}
}

func parseColor(s, fallback string, logger *slog.Logger) color.RGBA {
	c, err := aggregate.ParseHex(s)
	if err != nil {
		logger.Warn("invalid point color, using default", "color", s, "error", err)
		c, _ = aggregate.ParseHex(fallback)
	}
	return c
}

// Mount fixes the sampling residue for this mount. Mounting twice is a
// no-op.
func (r *Renderer) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	r.active = r.sampling.Resolve(r.rng)
	r.logger.Debug("points mounted", "modulus", r.active.Modulus, "bucket", r.active.Bucket)
}

// Sampling returns the residue class in effect for the current mount.
func (r *Renderer) Sampling() Sampling {
	return r.active
}

// Start abandons any in-flight sequence, clears every drawn point, and
// begins drawing events in batches from the next frame.
func (r *Renderer) Start(events []domain.EventRecord) {
	if !r.mounted {
		r.Mount()
	}
	gen := r.reset()

	pts, dropped := Filter(events, r.base, r.active)
	if dropped > 0 {
		r.metrics.InvalidRecords.WithLabelValues("events").Add(float64(dropped))
	}
	r.pending = pts
	r.logger.Debug("points filtered", "generation", gen, "kept", len(pts), "invalid", dropped)
	if len(pts) > 0 {
		r.schedule(gen)
	}
}

// Teardown abandons any in-flight sequence and clears every drawn point.
func (r *Renderer) Teardown() {
	r.reset()
	r.pending = nil
}

// Unmount tears down and forgets the sampling residue; the next Mount draws
// a fresh one.
func (r *Renderer) Unmount() {
	r.Teardown()
	r.mounted = false
}

// Mounted reports whether Mount has run since the last Unmount.
func (r *Renderer) Mounted() bool {
	return r.mounted
}

func (r *Renderer) reset() uint64 {
	r.generation++
	if n := len(r.points); n > 0 {
		r.metrics.PointsCleared.Add(float64(n))
	}
	r.points = nil
	r.index = map[int64]int{}
	r.next = 0
	return r.generation
}

// Generation identifies the current batch sequence.
func (r *Renderer) Generation() uint64 {
	return r.generation
}

func (r *Renderer) schedule(gen uint64) {
	if !r.loop.Post(func() { r.drawBatch(gen) }) {
		r.logger.Debug("loop stopped, abandoning point batches", "generation", gen)
	}
}

func (r *Renderer) drawBatch(gen uint64) {
	if gen != r.generation {
		return
	}
	end := min(r.next+r.batchSize, len(r.pending))
	for _, p := range r.pending[r.next:end] {
		if _, dup := r.index[p.ID]; !dup {
			r.index[p.ID] = len(r.points)
		}
		r.points = append(r.points, drawn{Point: p, fromR: r.style.PointRadius, fromFill: r.fill})
	}
	r.metrics.BatchesDrawn.Inc()
	r.metrics.PointsDrawn.Add(float64(end - r.next))
	r.next = end

	if r.next < len(r.pending) {
		r.schedule(gen)
	}
}

// Drawn returns the number of points currently on the map.
func (r *Renderer) Drawn() int {
	return len(r.points)
}

// Total returns the size of the filtered set of the current sequence.
func (r *Renderer) Total() int {
	return len(r.pending)
}

// Done reports whether every batch of the current sequence has been drawn.
func (r *Renderer) Done() bool {
	return r.next >= len(r.pending)
}

// DrawnIDs returns the ids of the drawn points in draw order.
func (r *Renderer) DrawnIDs() []int64 {
	ids := make([]int64, len(r.points))
	for i, p := range r.points {
		ids[i] = p.ID
	}
	return ids
}

// Hover grows and darkens a drawn point. It reports false when the point is
// not on the map.
func (r *Renderer) Hover(id int64) bool {
	return r.setHover(id, true)
}

// Unhover reverts a hovered point.
func (r *Renderer) Unhover(id int64) bool {
	return r.setHover(id, false)
}

func (r *Renderer) setHover(id int64, on bool) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	now := r.clock.Now()
	p := &r.points[i]
	radius, fill := r.sample(*p, now)
	p.fromR, p.fromFill = radius, fill
	p.hovered = on
	p.tween = anim.Tween{Start: now, Duration: r.style.HoverTransition}
	return true
}

func (r *Renderer) sample(p drawn, now time.Time) (float64, color.RGBA) {
	toR, toFill := r.style.PointRadius, r.fill
	if p.hovered {
		toR, toFill = r.style.PointHoverRadius, r.hoverFill
	}
	t, done := p.tween.Progress(now)
	if done {
		return toR, toFill
	}
	return p.fromR + (toR-p.fromR)*t, aggregate.Lerp(p.fromFill, toFill, t)
}

// Click selects a drawn point. The result always asks the caller to stop
// propagation for a drawn point so the map's own handler never sees it.
func (r *Renderer) Click(id int64) ClickResult {
	if _, ok := r.index[id]; !ok {
		return ClickResult{}
	}
	r.metrics.PointClicks.Inc()
	if r.onSelect != nil {
		r.onSelect(id)
	}
	return ClickResult{Handled: true, StopPropagation: true}
}

// ComputeGeometry returns the full draw list at now: the shared transform,
// the state backdrop, and every point drawn so far.
func (r *Renderer) ComputeGeometry(now time.Time) []domain.DrawCommand {
	if !r.mounted {
		return []domain.DrawCommand{{Op: domain.OpClear, Layer: LayerMap}}
	}

	t := r.view.TransformAt(now)
	regions := r.base.Regions()
	cmds := make([]domain.DrawCommand, 0, len(regions)+len(r.points)+4)
	cmds = append(cmds,
		domain.DrawCommand{Op: domain.OpClear, Layer: LayerStates},
		domain.DrawCommand{Op: domain.OpClear, Layer: LayerPoints},
		domain.DrawCommand{Op: domain.OpTransform, Layer: LayerMap, Transform: &t, StrokeWidth: 1 / t.K},
	)
	for _, reg := range regions {
		cmds = append(cmds, domain.DrawCommand{
			Op:     domain.OpPath,
			Layer:  LayerStates,
			ID:     reg.Name,
			Path:   r.base.PathFor(reg),
			Fill:   r.style.PlaceholderFill,
			Stroke: r.style.MeshStroke,
		})
	}
	for _, p := range r.points {
		radius, fill := r.sample(p, now)
		cmd := domain.DrawCommand{
			Op:      domain.OpCircle,
			Layer:   LayerPoints,
			ID:      strconv.FormatInt(p.ID, 10),
			X:       p.X,
			Y:       p.Y,
			R:       radius,
			Fill:    aggregate.FormatHex(fill),
			Opacity: r.style.PointOpacity,
		}
		if _, done := p.tween.Progress(now); !done {
			cmd.DurationMS = domain.Millis(p.tween.Start.Add(p.tween.Duration).Sub(now))
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}
