package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/sightings-map/internal/dashboard"
	"github.com/couchcryptid/sightings-map/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionStore creates, finds, and closes view sessions.
type SessionStore interface {
	Create(ctx context.Context) (*dashboard.View, error)
	Get(id string) (*dashboard.View, error)
	Delete(ctx context.Context, id string) error
}

// Server exposes the dashboard API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	sessions   SessionStore
	viewport   domain.Viewport
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the session routes and /healthz,
// /readyz, and /metrics.
func NewServer(addr string, sessions SessionStore, vp domain.Viewport, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		sessions: sessions,
		viewport: vp,
		logger:   logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/sessions", s.handleCreate)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Delete("/", s.handleDelete)
		r.Post("/reload", s.withView(s.handleReload))
		r.Get("/status", s.withView(s.handleStatus))
		r.Get("/selection", s.withView(s.handleSelection))
		r.Get("/legend", s.withView(s.handleLegend))
		r.Put("/metric", s.withView(s.handleMetric))

		r.Get("/choropleth", s.withView(s.handleChoropleth))
		r.Get("/choropleth.svg", s.withView(s.handleChoroplethSVG))
		r.Post("/choropleth/gesture", s.withView(s.handleChoroplethGesture))
		r.Post("/choropleth/regions/{name}/click", s.withView(s.handleRegionClick))
		r.Get("/regions/{name}", s.withView(s.handleRegionStats))

		r.Get("/points", s.withView(s.handlePoints))
		r.Get("/points.svg", s.withView(s.handlePointsSVG))
		r.Post("/points/gesture", s.withView(s.handlePointsGesture))
		r.Post("/points/{pid}/{action}", s.withView(s.handlePointAction))
		r.Get("/sightings/{pid}", s.withView(s.handleSighting))
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
