// Command rendermap renders the choropleth and the sightings point map to
// static SVG and JSON draw-command files. It drives the same renderers as the
// service with a fake clock, so output is the settled end state of both maps.
//
// Usage:
//
//	go run ./cmd/rendermap \
//	  -topology data/us-states.geojson \
//	  -events data/cleaned_ufo.csv \
//	  -population data/cleaned_population.csv \
//	  -out out/ -select Texas
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/sightings-map/internal/aggregate"
	"github.com/couchcryptid/sightings-map/internal/choropleth"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/geo"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/points"
	"github.com/couchcryptid/sightings-map/internal/scheduler"
	"github.com/couchcryptid/sightings-map/internal/surface"
	"github.com/couchcryptid/sightings-map/internal/tables"
	"github.com/couchcryptid/sightings-map/internal/zoom"
	"github.com/jonboulle/clockwork"
)

// renderEpoch fixes the fake clock so repeated runs produce identical files.
var renderEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type options struct {
	topology, nameField, object string
	events, population          string
	sqlitePath                  string
	styleFile                   string
	outDir                      string
	metric                      string
	selectRegion                string
	width, height               float64
	batchSize                   int
	modulus, bucket             int
	seed                        uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.topology, "topology", "data/us-states.geojson", "GeoJSON, TopoJSON or shapefile topology")
	flag.StringVar(&o.nameField, "name-field", "", "feature property holding the region name")
	flag.StringVar(&o.object, "object", geo.DefaultTopoObject, "TopoJSON object holding the regions")
	flag.StringVar(&o.events, "events", "data/cleaned_ufo.csv", "events table source")
	flag.StringVar(&o.population, "population", "data/cleaned_population.csv", "population table source")
	flag.StringVar(&o.sqlitePath, "sqlite", "", "SQLite database for sqlite: sources")
	flag.StringVar(&o.styleFile, "style", "", "YAML style overrides")
	flag.StringVar(&o.outDir, "out", ".", "output directory")
	flag.StringVar(&o.metric, "metric", aggregate.MetricRatePerMillion, "metric selector")
	flag.StringVar(&o.selectRegion, "select", "", "region to zoom the choropleth to")
	flag.Float64Var(&o.width, "width", domain.DefaultViewport.Width, "viewport width")
	flag.Float64Var(&o.height, "height", domain.DefaultViewport.Height, "viewport height")
	flag.IntVar(&o.batchSize, "batch", points.DefaultBatchSize, "points per frame")
	flag.IntVar(&o.modulus, "modulus", points.DefaultModulus, "keep 1 in N sightings by id (0 or 1 keeps all)")
	flag.IntVar(&o.bucket, "bucket", 0, "id residue to keep when sampling")
	flag.Uint64Var(&o.seed, "seed", 1, "seed for the random bucket when -bucket is -1")
	flag.Parse()

	if o.bucket < points.RandomBucket || (o.modulus > 1 && o.bucket >= o.modulus) {
		flag.Usage()
		return fmt.Errorf("invalid -bucket %d for -modulus %d", o.bucket, o.modulus)
	}
	return render(context.Background(), o)
}

func render(ctx context.Context, o options) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetrics()
	vp := domain.Viewport{Width: o.width, Height: o.height}

	style, err := config.LoadStyle(o.styleFile)
	if err != nil {
		return err
	}

	regions, err := geo.LoadTopology(o.topology, o.nameField, o.object)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}
	proj := geo.New(regions, vp)

	loader, closeTables, err := tables.Open(&config.Config{
		EventsSource:      o.events,
		PopulationSource:  o.population,
		TablesSQLitePath:  o.sqlitePath,
		TableFetchTimeout: 30 * time.Second,
	}, logger, metrics)
	if err != nil {
		return err
	}
	defer closeTables() //nolint:errcheck // read-only handle

	res := loader.Load(ctx)
	if res.EventsErr != nil {
		return res.EventsErr
	}

	clock := clockwork.NewFakeClockAt(renderEpoch)

	mapZoom := zoom.NewController(vp, clock, style.ZoomTransition, nil)
	choro := choropleth.New(proj, mapZoom, clock, style, logger, metrics)
	choro.Mount()
	if res.PopulationErr != nil {
		logger.Warn("rendering choropleth without population", "error", res.PopulationErr)
		choro.LoadFailed()
	} else {
		choro.SetTables(res.Tables())
		choro.SetMetric(o.metric)
	}
	if o.selectRegion != "" && !choro.Click(o.selectRegion, nil) {
		return fmt.Errorf("unknown region %q", o.selectRegion)
	}

	loop := scheduler.New(clock, 16*time.Millisecond, logger, metrics)
	pointsZoom := zoom.NewController(vp, clock, style.ZoomTransition, nil)
	pts := points.New(proj, pointsZoom, loop, clock, style, o.batchSize,
		points.Sampling{Modulus: o.modulus, Bucket: o.bucket},
		rand.New(rand.NewPCG(o.seed, o.seed)), logger, metrics, nil)
	pts.Mount()
	pts.Start(res.Events)
	frames := loop.Flush(len(res.Events) + 1)

	// Let every transition finish.
	clock.Advance(max(style.ZoomTransition, style.FillTransition, style.HoverTransition))
	now := clock.Now()

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	outputs := map[string][]domain.DrawCommand{
		"choropleth": choro.ComputeGeometry(now),
		"points":     pts.ComputeGeometry(now),
	}
	for name, cmds := range outputs {
		if err := writeJSON(filepath.Join(o.outDir, name+".json"), cmds); err != nil {
			return err
		}
		if err := writeSVG(filepath.Join(o.outDir, name+".svg"), cmds, vp); err != nil {
			return err
		}
	}

	minLabel, maxLabel, _ := choro.Legend()
	fmt.Printf("Regions: %d\n", len(regions))
	fmt.Printf("Sightings: %d rows, %d drawn in %d frames (sampling 1/%d, bucket %d)\n",
		len(res.Events), pts.Drawn(), frames, o.modulus, pts.Sampling().Bucket)
	fmt.Printf("Legend: %s .. %s\n", minLabel, maxLabel)
	fmt.Printf("Wrote %s\n", o.outDir)
	return nil
}

func writeJSON(path string, cmds []domain.DrawCommand) error {
	data, err := json.MarshalIndent(cmds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // render output
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeSVG(path string, cmds []domain.DrawCommand, vp domain.Viewport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	scene := surface.NewScene()
	scene.Apply(cmds...)
	if err := scene.WriteSVG(f, vp); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
