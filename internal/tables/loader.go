package tables

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
)

// Table names used in logs and metric labels.
const (
	TableEvents     = "events"
	TablePopulation = "population"
)

// Result carries both tables and their independent load errors.
type Result struct {
	Events        []domain.EventRecord
	EventsErr     error
	Population    []domain.PopulationRecord
	PopulationErr error
}

// Tables returns the loaded rows, empty for a table that failed.
func (r Result) Tables() domain.Tables {
	return domain.Tables{Events: r.Events, Population: r.Population}
}

// Loader fetches and parses both tables.
type Loader struct {
	events     Source
	population Source
	logger     *slog.Logger
	metrics    *observability.Metrics

	geocoder   domain.Geocoder
	maxLookups int
}

// NewLoader creates a loader over the two sources.
func NewLoader(events, population Source, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{events: events, population: population, logger: logger, metrics: metrics}
}

// WithGeocoder enables forward geocoding of sightings that name a city and
// state but lack coordinates. At most maxLookups distinct places are looked
// up per load; 0 means no limit.
func (l *Loader) WithGeocoder(g domain.Geocoder, maxLookups int) *Loader {
	l.geocoder = g
	l.maxLookups = maxLookups
	return l
}

// Load fetches both tables concurrently. A failure of one table never hides
// the other; failures are logged and counted here.
func (l *Loader) Load(ctx context.Context) Result {
	var res Result
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Events, res.EventsErr = l.LoadEvents(ctx)
	}()
	go func() {
		defer wg.Done()
		res.Population, res.PopulationErr = l.LoadPopulation(ctx)
	}()
	wg.Wait()
	return res
}

// LoadEvents fetches and parses the sightings table.
func (l *Loader) LoadEvents(ctx context.Context) ([]domain.EventRecord, error) {
	start := time.Now()
	records, err := l.events.Read(ctx)
	if err != nil {
		return nil, l.fail(TableEvents, l.events, fmt.Errorf("read events: %w", err))
	}
	events, err := ParseEvents(records)
	if err != nil {
		return nil, l.fail(TableEvents, l.events, err)
	}
	if l.geocoder != nil {
		stats := domain.FillMissingCoordinates(ctx, events, l.geocoder, l.maxLookups, l.logger)
		if stats.Lookups > 0 || stats.Skipped > 0 {
			l.logger.Info("sightings geocoded",
				"lookups", stats.Lookups,
				"filled", stats.Filled,
				"failed", stats.Failed,
				"skipped", stats.Skipped,
			)
		}
	}
	l.metrics.TableLoadDuration.WithLabelValues(TableEvents).Observe(time.Since(start).Seconds())
	l.logger.Info("table loaded", "table", TableEvents, "source", l.events.String(), "rows", len(events))
	return events, nil
}

// LoadPopulation fetches and parses the population table.
func (l *Loader) LoadPopulation(ctx context.Context) ([]domain.PopulationRecord, error) {
	start := time.Now()
	records, err := l.population.Read(ctx)
	if err != nil {
		return nil, l.fail(TablePopulation, l.population, fmt.Errorf("read population: %w", err))
	}
	pop, invalid, err := ParsePopulation(records)
	if err != nil {
		return nil, l.fail(TablePopulation, l.population, err)
	}
	if invalid > 0 {
		l.metrics.InvalidRecords.WithLabelValues(TablePopulation).Add(float64(invalid))
		l.logger.Debug("population rows skipped", "invalid", invalid)
	}
	l.metrics.TableLoadDuration.WithLabelValues(TablePopulation).Observe(time.Since(start).Seconds())
	l.logger.Info("table loaded", "table", TablePopulation, "source", l.population.String(), "rows", len(pop))
	return pop, nil
}

func (l *Loader) fail(table string, src Source, err error) error {
	l.metrics.TableLoadErrors.WithLabelValues(table).Inc()
	l.logger.Error("table load failed", "table", table, "source", src.String(), "error", err)
	return err
}

// Open builds a Loader for the configured sources, opening the SQLite
// database first when one is configured. The returned close func releases it.
func Open(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Loader, func() error, error) {
	var db *sql.DB
	closeDB := func() error { return nil }
	if cfg.TablesSQLitePath != "" {
		var err error
		if db, err = OpenSQLite(cfg.TablesSQLitePath); err != nil {
			return nil, nil, err
		}
		closeDB = db.Close
	}

	events, err := NewSource(cfg.EventsSource, db, cfg.TableFetchTimeout)
	if err != nil {
		_ = closeDB()
		return nil, nil, fmt.Errorf("events source: %w", err)
	}
	population, err := NewSource(cfg.PopulationSource, db, cfg.TableFetchTimeout)
	if err != nil {
		_ = closeDB()
		return nil, nil, fmt.Errorf("population source: %w", err)
	}
	return NewLoader(events, population, logger, metrics), closeDB, nil
}
