package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	SessionsActive prometheus.Gauge
	FramesTotal    prometheus.Counter

	// Point rendering metrics.
	BatchesDrawn  prometheus.Counter
	PointsDrawn   prometheus.Counter
	PointsCleared prometheus.Counter

	// Table loading metrics.
	TableLoadErrors     *prometheus.CounterVec   // labels: table={events,population}
	TableLoadDuration   *prometheus.HistogramVec // labels: table={events,population}
	InvalidRecords      *prometheus.CounterVec   // labels: table={events,population}
	StaleLoadsDiscarded prometheus.Counter

	// Interaction metrics.
	RegionClicks prometheus.Counter
	PointClicks  prometheus.Counter

	AggregationDuration    prometheus.Histogram
	SelectionPublishErrors prometheus.Counter

	// Geocoding enrichment metrics.
	GeocodeRequests     *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeDuration     prometheus.Histogram
	GeocodeCacheLookups *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SessionsActive,
		m.FramesTotal,
		m.BatchesDrawn,
		m.PointsDrawn,
		m.PointsCleared,
		m.TableLoadErrors,
		m.TableLoadDuration,
		m.InvalidRecords,
		m.StaleLoadsDiscarded,
		m.RegionClicks,
		m.PointClicks,
		m.AggregationDuration,
		m.SelectionPublishErrors,
		m.GeocodeRequests,
		m.GeocodeDuration,
		m.GeocodeCacheLookups,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sightings_map",
			Name:      "sessions_active",
			Help:      "Number of live map view sessions.",
		}),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "frames_total",
			Help:      "Total frame ticks executed across all session loops.",
		}),
		BatchesDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "point_batches_drawn_total",
			Help:      "Total point batches drawn.",
		}),
		PointsDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "points_drawn_total",
			Help:      "Total sighting points drawn.",
		}),
		PointsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "points_cleared_total",
			Help:      "Total drawn points removed by teardown.",
		}),
		TableLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "table_load_errors_total",
			Help:      "Table fetch or parse failures by table.",
		}, []string{"table"}),
		TableLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sightings_map",
			Name:      "table_load_duration_seconds",
			Help:      "Duration of a table fetch and parse.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"table"}),
		InvalidRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "invalid_records_total",
			Help:      "Rows filtered out as invalid, by table.",
		}, []string{"table"}),
		StaleLoadsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "stale_loads_discarded_total",
			Help:      "Async table loads that resolved after their session moved on.",
		}),
		RegionClicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "region_clicks_total",
			Help:      "Total region clicks on the choropleth.",
		}),
		PointClicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "point_clicks_total",
			Help:      "Total sighting point clicks.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sightings_map",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a per-region rate aggregation.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		SelectionPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "selection_publish_errors_total",
			Help:      "Selection events that a sink failed to deliver.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "geocode_requests_total",
			Help:      "Forward geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sightings_map",
			Name:      "geocode_request_duration_seconds",
			Help:      "Duration of forward geocoding API requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightings_map",
			Name:      "geocode_cache_lookups_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
	}
}
