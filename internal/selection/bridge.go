// Package selection carries the selected region and sighting out of a map
// session to display panels and to external sinks.
package selection

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Event kinds published to sinks.
const (
	KindRegion = "region"
	KindPoint  = "point"
	KindReset  = "reset"
)

// Event is one selection change as published to sinks.
type Event struct {
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"`
	Region     *string   `json:"region"`
	PointID    *int64    `json:"point_id"`
	SelectedAt time.Time `json:"selected_at"`
}

// Sink receives selection events. Implementations must not block the
// caller on network I/O.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Bridge holds the session's SelectionState and fans changes out to
// subscribers in registration order, then to sinks. It is owned by the
// session loop and not safe for concurrent use.
type Bridge struct {
	sessionID string
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	state      domain.SelectionState
	regionSubs []func(region *string)
	pointSubs  []func(id *int64)
	sinks      []Sink
}

// NewBridge creates an empty bridge for one session.
func NewBridge(sessionID string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Bridge {
	return &Bridge{sessionID: sessionID, clock: clock, logger: logger, metrics: metrics}
}

// OnRegionSelected registers a region subscriber. nil means deselected.
func (b *Bridge) OnRegionSelected(fn func(region *string)) {
	b.regionSubs = append(b.regionSubs, fn)
}

// OnPointSelected registers a point subscriber. nil means deselected.
func (b *Bridge) OnPointSelected(fn func(id *int64)) {
	b.pointSubs = append(b.pointSubs, fn)
}

// AddSink attaches a sink.
func (b *Bridge) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// State returns a copy of the current selection.
func (b *Bridge) State() domain.SelectionState {
	return domain.SelectionState{
		SelectedRegion:  clone(b.state.SelectedRegion),
		SelectedPointID: clone(b.state.SelectedPointID),
	}
}

// RegionSelected records the choropleth selection; nil deselects.
func (b *Bridge) RegionSelected(region *string) {
	b.state.SelectedRegion = clone(region)
	for _, fn := range b.regionSubs {
		fn(clone(region))
	}
	b.publish(Event{Kind: KindRegion, Region: clone(region)})
}

// PointSelected records the point map selection.
func (b *Bridge) PointSelected(id int64) {
	b.state.SelectedPointID = &id
	for _, fn := range b.pointSubs {
		v := id
		fn(&v)
	}
	b.publish(Event{Kind: KindPoint, PointID: &id})
}

// Reset clears both selections, notifying subscribers of any slot that was
// set.
func (b *Bridge) Reset() {
	hadRegion := b.state.SelectedRegion != nil
	hadPoint := b.state.SelectedPointID != nil
	b.state = domain.SelectionState{}
	if hadRegion {
		for _, fn := range b.regionSubs {
			fn(nil)
		}
	}
	if hadPoint {
		for _, fn := range b.pointSubs {
			fn(nil)
		}
	}
	if hadRegion || hadPoint {
		b.publish(Event{Kind: KindReset})
	}
}

func (b *Bridge) publish(ev Event) {
	if len(b.sinks) == 0 {
		return
	}
	ev.SessionID = b.sessionID
	ev.SelectedAt = b.clock.Now().UTC()
	for _, s := range b.sinks {
		if err := s.Publish(context.Background(), ev); err != nil {
			b.metrics.SelectionPublishErrors.Inc()
			b.logger.Warn("publish selection failed", "session", b.sessionID, "kind", ev.Kind, "error", err)
		}
	}
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
