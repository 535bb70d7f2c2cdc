package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/sightings-map/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Inputs.
	TopologyPath      string
	TopologyNameField string
	TopologyObject    string
	EventsSource      string
	PopulationSource  string
	TablesSQLitePath  string
	TableFetchTimeout time.Duration
	StyleFile         string

	// Rendering.
	ViewportWidth      float64
	ViewportHeight     float64
	PointBatchSize     int
	PointSampleModulus int
	PointSampleBucket  int
	PointSampleSeed    int64
	FrameInterval      time.Duration

	// Selection sink.
	KafkaBrokers          []string
	KafkaSelectionTopic   string
	SelectionKafkaEnabled bool

	// Mapbox geocoding of sightings without coordinates.
	MapboxToken      string
	MapboxEnabled    bool
	MapboxTimeout    time.Duration
	MapboxCacheSize  int
	MapboxMaxLookups int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("TABLE_FETCH_TIMEOUT", "10s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid TABLE_FETCH_TIMEOUT")
	}

	frameInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("FRAME_INTERVAL", "16ms"))
	if err != nil || frameInterval <= 0 {
		return nil, errors.New("invalid FRAME_INTERVAL")
	}

	width, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("VIEWPORT_WIDTH", "975"), 64)
	if err != nil || width <= 0 {
		return nil, errors.New("invalid VIEWPORT_WIDTH")
	}
	height, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("VIEWPORT_HEIGHT", "610"), 64)
	if err != nil || height <= 0 {
		return nil, errors.New("invalid VIEWPORT_HEIGHT")
	}

	batchSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("POINT_BATCH_SIZE", "200"))
	if err != nil || batchSize <= 0 {
		return nil, errors.New("invalid POINT_BATCH_SIZE")
	}
	modulus, err := strconv.Atoi(sharedcfg.EnvOrDefault("POINT_SAMPLE_MODULUS", "5"))
	if err != nil || modulus < 0 {
		return nil, errors.New("invalid POINT_SAMPLE_MODULUS")
	}
	bucket, err := strconv.Atoi(sharedcfg.EnvOrDefault("POINT_SAMPLE_BUCKET", "-1"))
	if err != nil || bucket < -1 || (modulus > 1 && bucket >= modulus) {
		return nil, errors.New("invalid POINT_SAMPLE_BUCKET")
	}
	seed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("POINT_SAMPLE_SEED", "0"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid POINT_SAMPLE_SEED")
	}

	kafkaEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("SELECTION_KAFKA_ENABLED", "false"))
	if err != nil {
		return nil, errors.New("invalid SELECTION_KAFKA_ENABLED")
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}
	maxLookups, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAPBOX_MAX_LOOKUPS", "500"))
	if err != nil || maxLookups < 0 {
		return nil, errors.New("invalid MAPBOX_MAX_LOOKUPS")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TopologyPath:      sharedcfg.EnvOrDefault("TOPOLOGY_PATH", "data/us-states.geojson"),
		TopologyNameField: sharedcfg.EnvOrDefault("TOPOLOGY_NAME_FIELD", ""),
		TopologyObject:    sharedcfg.EnvOrDefault("TOPOLOGY_OBJECT", "states"),
		EventsSource:      sharedcfg.EnvOrDefault("EVENTS_SOURCE", "data/cleaned_ufo.csv"),
		PopulationSource:  sharedcfg.EnvOrDefault("POPULATION_SOURCE", "data/cleaned_population.csv"),
		TablesSQLitePath:  sharedcfg.EnvOrDefault("TABLES_SQLITE_PATH", ""),
		TableFetchTimeout: fetchTimeout,
		StyleFile:         sharedcfg.EnvOrDefault("MAP_STYLE_FILE", ""),

		ViewportWidth:      width,
		ViewportHeight:     height,
		PointBatchSize:     batchSize,
		PointSampleModulus: modulus,
		PointSampleBucket:  bucket,
		PointSampleSeed:    seed,
		FrameInterval:      frameInterval,

		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSelectionTopic:   sharedcfg.EnvOrDefault("KAFKA_SELECTION_TOPIC", "selection-events"),
		SelectionKafkaEnabled: kafkaEnabled,

		MapboxToken:      mapboxToken,
		MapboxEnabled:    mapboxEnabled,
		MapboxTimeout:    mapboxTimeout,
		MapboxCacheSize:  parseMapboxCacheSize(),
		MapboxMaxLookups: maxLookups,
	}

	if cfg.TopologyPath == "" {
		return nil, errors.New("TOPOLOGY_PATH is required")
	}
	if cfg.EventsSource == "" {
		return nil, errors.New("EVENTS_SOURCE is required")
	}
	if cfg.PopulationSource == "" {
		return nil, errors.New("POPULATION_SOURCE is required")
	}
	if cfg.SelectionKafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("SELECTION_KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.SelectionKafkaEnabled && cfg.KafkaSelectionTopic == "" {
		return nil, errors.New("KAFKA_SELECTION_TOPIC is required")
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// Viewport returns the configured drawing surface size.
func (c *Config) Viewport() domain.Viewport {
	return domain.Viewport{Width: c.ViewportWidth, Height: c.ViewportHeight}
}
