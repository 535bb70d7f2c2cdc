// Package dashboard wires the two maps of one view session to a session
// loop, a table loader, and a selection bridge.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/couchcryptid/sightings-map/internal/choropleth"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/geo"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/points"
	"github.com/couchcryptid/sightings-map/internal/scheduler"
	"github.com/couchcryptid/sightings-map/internal/selection"
	"github.com/couchcryptid/sightings-map/internal/tables"
	"github.com/couchcryptid/sightings-map/internal/zoom"
	"github.com/jonboulle/clockwork"
)

// TableLoader fetches both source tables.
type TableLoader interface {
	Load(ctx context.Context) tables.Result
}

// Options are the per-session rendering parameters.
type Options struct {
	Viewport      domain.Viewport
	Style         config.Style
	BatchSize     int
	Sampling      points.Sampling
	Seed          int64
	FrameInterval time.Duration
}

// Gesture is a pan and/or wheel zoom. Factor 0 or 1 means no zoom; X and Y
// are the zoom anchor in screen pixels.
type Gesture struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Factor float64 `json:"factor"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Legend is the choropleth's color domain for display.
type Legend struct {
	Min    string `json:"min"`
	Max    string `json:"max"`
	Ready  bool   `json:"ready"`
	Metric string `json:"metric"`
}

// Status summarizes the session's load and draw progress.
type Status struct {
	Loading         bool   `json:"loading"`
	EventsError     string `json:"events_error,omitempty"`
	PopulationError string `json:"population_error,omitempty"`
	PointsDrawn     int    `json:"points_drawn"`
	PointsTotal     int    `json:"points_total"`
}

// View is one dashboard session. Every field below the loop is owned by the
// loop goroutine; exported methods submit work to it and wait.
type View struct {
	id      string
	loop    *scheduler.Loop
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	loader  TableLoader
	onLoad  func(tables.Result)

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	mapZoom    *zoom.Controller
	pointsZoom *zoom.Controller
	choropleth *choropleth.Renderer
	points     *points.Renderer
	bridge     *selection.Bridge

	loadGen   uint64
	loading   bool
	status    Status
	sightings map[int64]domain.EventRecord
}

// NewView builds an unstarted session over a shared projector.
func NewView(id string, proj *geo.Projector, loader TableLoader, clock clockwork.Clock, opts Options, logger *slog.Logger, metrics *observability.Metrics, sinks ...selection.Sink) *View {
	logger = logger.With("session", id)
	v := &View{
		id:      id,
		loop:    scheduler.New(clock, opts.FrameInterval, logger, metrics),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		loader:  loader,
	}

	v.bridge = selection.NewBridge(id, clock, logger, metrics)
	for _, s := range sinks {
		v.bridge.AddSink(s)
	}

	v.mapZoom = zoom.NewController(opts.Viewport, clock, opts.Style.ZoomTransition, v.bridge.RegionSelected)
	v.pointsZoom = zoom.NewController(opts.Viewport, clock, opts.Style.ZoomTransition, nil)
	v.choropleth = choropleth.New(proj, v.mapZoom, clock, opts.Style, logger, metrics)
	v.points = points.New(proj, v.pointsZoom, v.loop, clock, opts.Style, opts.BatchSize, opts.Sampling,
		newRand(opts.Seed), logger, metrics, v.bridge.PointSelected)
	return v
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// ID returns the session id.
func (v *View) ID() string { return v.id }

// Bridge exposes the selection bridge for subscriber registration before
// Start.
func (v *View) Bridge() *selection.Bridge { return v.bridge }

// Start runs the session loop until base ends or Close is called, then mounts
// both maps and begins the first table load. ctx bounds the mount only; a
// ctx already done starts nothing.
func (v *View) Start(base, ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mount session: %w", err)
	}
	v.ctx, v.cancel = context.WithCancel(base)
	go func() {
		if err := v.loop.Run(v.ctx); err != nil {
			v.logger.Error("session loop error", "error", err)
		}
	}()
	return v.loop.Do(ctx, func() {
		v.choropleth.Mount()
		v.points.Mount()
		v.reload()
	})
}

// Close tears both maps down and stops the loop. It is a no-op on a view
// that was never started.
func (v *View) Close(ctx context.Context) {
	if v.cancel == nil {
		return
	}
	v.stopOnce.Do(func() {
		if err := v.loop.Do(ctx, func() {
			v.loadGen++
			v.points.Unmount()
			v.choropleth.Unmount()
		}); err != nil {
			v.logger.Debug("teardown skipped", "error", err)
		}
		v.cancel()
		<-v.loop.Done()
	})
}

// reload clears selections and drawn points and starts an async load.
// Only the latest load's result is applied.
func (v *View) reload() {
	v.loadGen++
	gen := v.loadGen
	v.loading = true
	v.status = Status{Loading: true}
	v.mapZoom.Reset()
	v.bridge.Reset()
	v.points.Teardown()

	// The fetch is allowed to finish after the session moves on; its result
	// is dropped by the generation check.
	fetchCtx := context.WithoutCancel(v.ctx)
	go func() {
		res := v.loader.Load(fetchCtx)
		if v.onLoad != nil {
			v.onLoad(res)
		}
		if !v.loop.Post(func() { v.applyLoad(gen, res) }) {
			v.metrics.StaleLoadsDiscarded.Inc()
		}
	}()
}

func (v *View) applyLoad(gen uint64, res tables.Result) {
	if gen != v.loadGen || !v.points.Mounted() {
		v.metrics.StaleLoadsDiscarded.Inc()
		v.logger.Debug("discarding stale table load", "generation", gen, "current", v.loadGen)
		return
	}
	v.loading = false
	v.status.Loading = false

	if res.EventsErr != nil {
		v.status.EventsError = res.EventsErr.Error()
		v.sightings = nil
		v.points.Teardown()
		v.choropleth.LoadFailed()
		return
	}

	v.sightings = make(map[int64]domain.EventRecord, len(res.Events))
	for _, e := range res.Events {
		if e.Plottable() {
			if _, dup := v.sightings[e.ID]; !dup {
				v.sightings[e.ID] = e
			}
		}
	}
	v.points.Start(res.Events)

	if res.PopulationErr != nil {
		v.status.PopulationError = res.PopulationErr.Error()
		v.choropleth.LoadFailed()
		return
	}
	v.choropleth.SetTables(res.Tables())
}

func (v *View) do(ctx context.Context, fn func()) error {
	if err := v.loop.Do(ctx, fn); err != nil {
		return fmt.Errorf("session %s: %w", v.id, err)
	}
	return nil
}

// Reload re-fetches both tables, abandoning any in-flight load and batch
// sequence.
func (v *View) Reload(ctx context.Context) error {
	return v.do(ctx, v.reload)
}

// Choropleth returns the choropleth draw list at the current instant.
func (v *View) Choropleth(ctx context.Context) ([]domain.DrawCommand, error) {
	var cmds []domain.DrawCommand
	err := v.do(ctx, func() { cmds = v.choropleth.ComputeGeometry(v.clock.Now()) })
	return cmds, err
}

// Points returns the point map draw list at the current instant.
func (v *View) Points(ctx context.Context) ([]domain.DrawCommand, error) {
	var cmds []domain.DrawCommand
	err := v.do(ctx, func() { cmds = v.points.ComputeGeometry(v.clock.Now()) })
	return cmds, err
}

// ClickRegion forwards a region click. anchor may be nil.
func (v *View) ClickRegion(ctx context.Context, region string, anchor *domain.Point) (bool, error) {
	var ok bool
	err := v.do(ctx, func() { ok = v.choropleth.Click(region, anchor) })
	return ok, err
}

// ChoroplethGesture pans and zooms the choropleth.
func (v *View) ChoroplethGesture(ctx context.Context, g Gesture) error {
	return v.do(ctx, func() { applyGesture(v.mapZoom, g) })
}

// PointsGesture pans and zooms the point map.
func (v *View) PointsGesture(ctx context.Context, g Gesture) error {
	return v.do(ctx, func() { applyGesture(v.pointsZoom, g) })
}

func applyGesture(zc *zoom.Controller, g Gesture) {
	if g.DX != 0 || g.DY != 0 {
		zc.Pan(g.DX, g.DY)
	}
	if g.Factor != 0 && g.Factor != 1 {
		zc.ZoomBy(g.Factor, domain.Point{X: g.X, Y: g.Y})
	}
}

// SetMetric changes the active metric selector.
func (v *View) SetMetric(ctx context.Context, metric string) error {
	return v.do(ctx, func() { v.choropleth.SetMetric(metric) })
}

// Legend returns the choropleth's legend labels.
func (v *View) Legend(ctx context.Context) (Legend, error) {
	var l Legend
	err := v.do(ctx, func() {
		l.Min, l.Max, l.Ready = v.choropleth.Legend()
		l.Metric = v.choropleth.Metric()
	})
	return l, err
}

// Selection returns a snapshot of both selections.
func (v *View) Selection(ctx context.Context) (domain.SelectionState, error) {
	var st domain.SelectionState
	err := v.do(ctx, func() { st = v.bridge.State() })
	return st, err
}

// HoverPoint starts the hover transition of a drawn point.
func (v *View) HoverPoint(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := v.do(ctx, func() { ok = v.points.Hover(id) })
	return ok, err
}

// UnhoverPoint reverts a hovered point.
func (v *View) UnhoverPoint(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := v.do(ctx, func() { ok = v.points.Unhover(id) })
	return ok, err
}

// ClickPoint selects a drawn point.
func (v *View) ClickPoint(ctx context.Context, id int64) (points.ClickResult, error) {
	var res points.ClickResult
	err := v.do(ctx, func() { res = v.points.Click(id) })
	return res, err
}

// Sighting looks up a plottable sighting by id for detail panels.
func (v *View) Sighting(ctx context.Context, id int64) (domain.EventRecord, bool, error) {
	var (
		rec domain.EventRecord
		ok  bool
	)
	err := v.do(ctx, func() { rec, ok = v.sightings[id] })
	return rec, ok, err
}

// RegionStats returns the figures behind a region's fill.
func (v *View) RegionStats(ctx context.Context, region string) (choropleth.RegionStats, bool, error) {
	var (
		st choropleth.RegionStats
		ok bool
	)
	err := v.do(ctx, func() { st, ok = v.choropleth.Stats(region) })
	return st, ok, err
}

// Status reports load and draw progress.
func (v *View) Status(ctx context.Context) (Status, error) {
	var st Status
	err := v.do(ctx, func() {
		st = v.status
		st.Loading = v.loading
		st.PointsDrawn = v.points.Drawn()
		st.PointsTotal = v.points.Total()
	})
	return st, err
}

// OptionsFromConfig derives session options from the service settings.
func OptionsFromConfig(cfg *config.Config, style config.Style) Options {
	return Options{
		Viewport:      cfg.Viewport(),
		Style:         style,
		BatchSize:     cfg.PointBatchSize,
		Sampling:      points.Sampling{Modulus: cfg.PointSampleModulus, Bucket: cfg.PointSampleBucket},
		Seed:          cfg.PointSampleSeed,
		FrameInterval: cfg.FrameInterval,
	}
}
