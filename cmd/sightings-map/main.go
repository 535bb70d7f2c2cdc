package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/sightings-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sightings-map/internal/adapter/kafka"
	"github.com/couchcryptid/sightings-map/internal/adapter/mapbox"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/dashboard"
	"github.com/couchcryptid/sightings-map/internal/geo"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/selection"
	"github.com/couchcryptid/sightings-map/internal/tables"
	"github.com/jonboulle/clockwork"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	style, err := config.LoadStyle(cfg.StyleFile)
	if err != nil {
		logger.Error("failed to load style", "error", err)
		os.Exit(1)
	}

	regions, err := geo.LoadTopology(cfg.TopologyPath, cfg.TopologyNameField, cfg.TopologyObject)
	if err != nil {
		logger.Error("failed to load topology", "path", cfg.TopologyPath, "error", err)
		os.Exit(1)
	}
	proj := geo.New(regions, cfg.Viewport())
	logger.Info("topology loaded", "regions", len(regions), "scale", proj.Scale())

	loader, closeTables, err := tables.Open(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to open table sources", "error", err)
		os.Exit(1)
	}

	// Geocoding of sightings without coordinates (feature-flagged via MAPBOX_ENABLED).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		loader.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics), cfg.MapboxMaxLookups)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "max_lookups", cfg.MapboxMaxLookups)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	// Selection sink (feature-flagged via SELECTION_KAFKA_ENABLED).
	var sinks []selection.Sink
	var writer *kafkaadapter.SelectionWriter
	if cfg.SelectionKafkaEnabled {
		writer = kafkaadapter.NewSelectionWriter(cfg, logger, metrics)
		sinks = append(sinks, writer)
		logger.Info("kafka selection sink enabled", "topic", cfg.KafkaSelectionTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka selection sink disabled")
	}

	registry := dashboard.NewRegistry(proj, loader, clockwork.NewRealClock(),
		dashboard.OptionsFromConfig(cfg, style), logger, metrics, sinks...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, cfg.Viewport(), registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load both sources once so /readyz reflects them before any session.
	go registry.Warm(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	registry.Close(shutdownCtx)
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := closeTables(); err != nil {
		logger.Error("tables close error", "error", err)
	}

	logger.Info("shutdown complete")
}
