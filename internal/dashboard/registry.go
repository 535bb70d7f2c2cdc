package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/sightings-map/internal/geo"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/selection"
	"github.com/couchcryptid/sightings-map/internal/tables"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// Registry owns the live view sessions of the service.
type Registry struct {
	proj    *geo.Projector
	loader  TableLoader
	clock   clockwork.Clock
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	sinks   []selection.Sink

	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*View
	ready    atomic.Bool
}

// NewRegistry creates an empty registry. Sinks are attached to every session
// it creates.
func NewRegistry(proj *geo.Projector, loader TableLoader, clock clockwork.Clock, opts Options, logger *slog.Logger, metrics *observability.Metrics, sinks ...selection.Sink) *Registry {
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		proj:     proj,
		loader:   loader,
		clock:    clock,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		sinks:    sinks,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*View),
	}
}

// Create starts a new session and mounts both maps. ctx bounds the mount;
// the session itself lives until Delete or Close.
func (r *Registry) Create(ctx context.Context) (*View, error) {
	id := uuid.NewString()
	v := NewView(id, r.proj, r.loader, r.clock, r.opts, r.logger, r.metrics, r.sinks...)
	v.onLoad = r.observeLoad

	if err := v.Start(r.base, ctx); err != nil {
		v.Close(ctx)
		return nil, fmt.Errorf("start session: %w", err)
	}

	r.mu.Lock()
	r.sessions[id] = v
	r.mu.Unlock()
	r.metrics.SessionsActive.Inc()
	r.logger.Info("session created", "session", id)
	return v, nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	v, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	v.Close(ctx)
	r.metrics.SessionsActive.Dec()
	r.logger.Info("session closed", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close shuts every session down.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range sessions {
		v.Close(ctx)
		r.metrics.SessionsActive.Dec()
	}
	r.cancel()
}

// Warm performs one table load outside any session so readiness reflects
// whether the sources are reachable.
func (r *Registry) Warm(ctx context.Context) tables.Result {
	res := r.loader.Load(ctx)
	r.observeLoad(res)
	return res
}

func (r *Registry) observeLoad(res tables.Result) {
	if res.EventsErr == nil && !r.ready.Swap(true) {
		r.logger.Info("table sources ready", "events", len(res.Events), "population", len(res.Population))
	}
}

// CheckReadiness reports ready once any table load has produced events.
func (r *Registry) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no successful table load yet")
	}
	return nil
}
