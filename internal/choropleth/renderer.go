// Package choropleth draws regions filled by their per-capita sighting rate
// and routes region clicks to the map's zoom controller.
package choropleth

import (
	"image/color"
	"log/slog"
	"time"

	"github.com/couchcryptid/sightings-map/internal/aggregate"
	"github.com/couchcryptid/sightings-map/internal/anim"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/zoom"
	"github.com/jonboulle/clockwork"
)

// Draw layers emitted by the renderer.
const (
	LayerMap     = "choropleth"
	LayerRegions = "choropleth/regions"
	LayerMesh    = "choropleth/mesh"
	MeshID       = "mesh"
)

// Geometry is the projected topology the renderer draws.
type Geometry interface {
	Regions() []domain.RegionFeature
	PathFor(region domain.RegionFeature) string
	MeshPath() string
	Region(name string) (domain.RegionFeature, bool)
}

type fill struct {
	from, to color.RGBA
	tween    anim.Tween
}

func (f fill) at(now time.Time) color.RGBA {
	p, done := f.tween.Progress(now)
	if done {
		return f.to
	}
	return aggregate.Lerp(f.from, f.to, p)
}

// RegionStats are the figures behind a region's fill.
type RegionStats struct {
	Region     string  `json:"region"`
	Count      int     `json:"count"`
	Population float64 `json:"population"`
	Rate       float64 `json:"rate"`
	// KnownPopulation is false for regions missing from the population table.
	KnownPopulation bool `json:"known_population"`
}

// Renderer is the choropleth map. Like the zoom controller it reads, it is
// owned by one session loop and not safe for concurrent use.
type Renderer struct {
	geom    Geometry
	zoom    *zoom.Controller
	clock   clockwork.Clock
	style   config.Style
	logger  *slog.Logger
	metrics *observability.Metrics

	placeholder color.RGBA
	low, high   string

	mounted bool
	fills   map[string]fill
	order   []domain.RegionFeature

	tables *domain.Tables
	metric string
	agg    *aggregate.AggregateRate
}

// New creates an unmounted renderer over geom whose clicks drive zc.
func New(geom Geometry, zc *zoom.Controller, clock clockwork.Clock, style config.Style, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	placeholder, err := aggregate.ParseHex(style.PlaceholderFill)
	if err != nil {
		logger.Warn("invalid placeholder fill, using default", "fill", style.PlaceholderFill, "error", err)
		placeholder, _ = aggregate.ParseHex(config.DefaultStyle().PlaceholderFill)
	}
	return &Renderer{
		geom:        geom,
		zoom:        zc,
		clock:       clock,
		style:       style,
		logger:      logger,
		metrics:     metrics,
		placeholder: placeholder,
		low:         style.LowColor,
		high:        style.HighColor,
		metric:      aggregate.MetricRatePerMillion,
	}
}

// Mount draws every region with the placeholder fill. Mounting twice is a
// no-op.
func (r *Renderer) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	r.order = r.geom.Regions()
	r.fills = make(map[string]fill, len(r.order))
	for _, reg := range r.order {
		r.fills[reg.Name] = fill{from: r.placeholder, to: r.placeholder}
	}
}

// Unmount drops the drawn regions and any loaded data.
func (r *Renderer) Unmount() {
	r.mounted = false
	r.fills = nil
	r.order = nil
	r.tables = nil
	r.agg = nil
}

// Mounted reports whether Mount has run since the last Unmount.
func (r *Renderer) Mounted() bool {
	return r.mounted
}

// SetTables re-aggregates against freshly loaded tables.
func (r *Renderer) SetTables(tables domain.Tables) {
	r.tables = &tables
	r.refresh()
}

// SetMetric changes the active metric selector and re-aggregates when data
// is loaded.
func (r *Renderer) SetMetric(metric string) {
	r.metric = metric
	if r.tables != nil {
		r.refresh()
	}
}

// Metric returns the active metric selector.
func (r *Renderer) Metric() string {
	return r.metric
}

// LoadFailed drops any loaded data: regions fall back to the placeholder
// fill and the legend is cleared.
func (r *Renderer) LoadFailed() {
	r.tables = nil
	r.agg = nil
	for name := range r.fills {
		r.fills[name] = fill{from: r.placeholder, to: r.placeholder}
	}
}

func (r *Renderer) refresh() {
	if !r.mounted || r.tables == nil {
		return
	}

	start := time.Now()
	agg, known := aggregate.ForMetric(r.metric, *r.tables)
	r.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	if !known {
		r.logger.Debug("unknown metric selector, using default", "metric", r.metric, "default", aggregate.MetricRatePerMillion)
	}
	r.agg = &agg

	scale, err := aggregate.NewColorScale(agg.Min, agg.Max, r.low, r.high)
	if err != nil {
		r.logger.Warn("invalid color ramp, using default", "error", err)
		scale = aggregate.MustColorScale(agg.Min, agg.Max, aggregate.DefaultLow, aggregate.DefaultHigh)
	}

	now := r.clock.Now()
	tween := anim.Tween{Start: now, Duration: r.style.FillTransition}
	for _, reg := range r.order {
		rate, _ := agg.Rate(reg.Name)
		r.fills[reg.Name] = fill{from: r.fills[reg.Name].at(now), to: scale.At(rate), tween: tween}
	}
}

// Click forwards a region click to the zoom controller. anchor is the
// pointer position, nil for the viewport center. It reports false for an
// unknown region.
func (r *Renderer) Click(region string, anchor *domain.Point) bool {
	reg, ok := r.geom.Region(region)
	if !ok || !r.mounted {
		return false
	}
	r.metrics.RegionClicks.Inc()
	r.zoom.Click(reg.Name, reg.Bounds, anchor)
	return true
}

// Legend returns the color domain bounds formatted to one decimal. ok is
// false until data has been aggregated.
func (r *Renderer) Legend() (minLabel, maxLabel string, ok bool) {
	if r.agg == nil {
		return "", "", false
	}
	minLabel, maxLabel = r.agg.Legend()
	return minLabel, maxLabel, true
}

// Stats returns the aggregate figures for a region. ok is false until data
// has been aggregated.
func (r *Renderer) Stats(region string) (RegionStats, bool) {
	if r.agg == nil {
		return RegionStats{}, false
	}
	pop, known := r.agg.Populations[region]
	rate, _ := r.agg.Rate(region)
	return RegionStats{
		Region:          region,
		Count:           r.agg.Counts[region],
		Population:      pop,
		Rate:            rate,
		KnownPopulation: known,
	}, true
}

// Animating reports whether any fill transition is still running at now.
func (r *Renderer) Animating(now time.Time) bool {
	for _, f := range r.fills {
		if _, done := f.tween.Progress(now); !done {
			return true
		}
	}
	return false
}

// ComputeGeometry returns the full draw list for the map at now: the layer
// transform, one path per region with its current fill, and the mesh.
func (r *Renderer) ComputeGeometry(now time.Time) []domain.DrawCommand {
	if !r.mounted {
		return []domain.DrawCommand{{Op: domain.OpClear, Layer: LayerMap}}
	}

	t := r.zoom.TransformAt(now)
	cmds := make([]domain.DrawCommand, 0, len(r.order)+4)
	cmds = append(cmds,
		domain.DrawCommand{Op: domain.OpClear, Layer: LayerRegions},
		domain.DrawCommand{Op: domain.OpClear, Layer: LayerMesh},
		domain.DrawCommand{Op: domain.OpTransform, Layer: LayerMap, Transform: &t, StrokeWidth: 1 / t.K},
	)
	for _, reg := range r.order {
		f := r.fills[reg.Name]
		cmd := domain.DrawCommand{
			Op:    domain.OpPath,
			Layer: LayerRegions,
			ID:    reg.Name,
			Path:  r.geom.PathFor(reg),
			Fill:  aggregate.FormatHex(f.at(now)),
			Title: reg.Name,
		}
		if _, done := f.tween.Progress(now); !done {
			cmd.DurationMS = domain.Millis(f.tween.Start.Add(f.tween.Duration).Sub(now))
		}
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, domain.DrawCommand{
		Op:     domain.OpPath,
		Layer:  LayerMesh,
		ID:     MeshID,
		Path:   r.geom.MeshPath(),
		Fill:   "none",
		Stroke: r.style.MeshStroke,
	})
	return cmds
}
