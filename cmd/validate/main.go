// Command validate checks the sightings and population tables against each
// other and against the topology: schema, record validity, region joins, and
// projection coverage. It prints a phase-by-phase report and exits non-zero
// when a phase fails.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -topology data/us-states.geojson \
//	  -events data/cleaned_ufo.csv \
//	  -population data/cleaned_population.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/geo"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/tables"
)

// maxListed caps the per-phase detail lines.
const maxListed = 20

// phase tracks pass/fail for a validation phase. Warnings are reported but
// do not fail the phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	topology := flag.String("topology", "data/us-states.geojson", "GeoJSON, TopoJSON or shapefile topology")
	nameField := flag.String("name-field", "", "feature property holding the region name")
	object := flag.String("object", geo.DefaultTopoObject, "TopoJSON object holding the regions")
	events := flag.String("events", "data/cleaned_ufo.csv", "events table source")
	population := flag.String("population", "data/cleaned_population.csv", "population table source")
	sqlitePath := flag.String("sqlite", "", "SQLite database for sqlite: sources")
	flag.Parse()

	cfg := &config.Config{
		TopologyPath:      *topology,
		TopologyNameField: *nameField,
		TopologyObject:    *object,
		EventsSource:      *events,
		PopulationSource:  *population,
		TablesSQLitePath:  *sqlitePath,
		TableFetchTimeout: 30 * time.Second,
	}
	os.Exit(run(context.Background(), cfg, os.Stdout))
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	fmt.Fprintln(out, "=== Sightings Table Validation ===")
	fmt.Fprintln(out)

	regions, err := geo.LoadTopology(cfg.TopologyPath, cfg.TopologyNameField, cfg.TopologyObject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load topology: %v\n", err)
		return 1
	}
	proj := geo.New(regions, domain.DefaultViewport)

	loader, closeTables, err := tables.Open(cfg, logger, metrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open sources: %v\n", err)
		return 1
	}
	defer closeTables() //nolint:errcheck // read-only handle

	res := loader.Load(ctx)
	phases := []*phase{
		validateSchema(res),
		validateRecords(res.Events),
		validateJoins(res.Events, res.Population, proj.Regions()),
		validateProjection(res.Events, proj),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d events, %d population rows, %d topology regions\n",
		len(res.Events), len(res.Population), len(regions))

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		printList(out, "error", p.errors)
		printList(out, "warning", p.warnings)
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func printList(out io.Writer, kind string, items []string) {
	for i, e := range items {
		if i == maxListed {
			fmt.Fprintf(out, "  ... %d more %ss\n", len(items)-maxListed, kind)
			return
		}
		fmt.Fprintf(out, "  [%s %d] %s\n", kind, i+1, e)
	}
}

// ── Phase 1: both tables load and carry their required columns ──

func validateSchema(res tables.Result) *phase {
	p := &phase{name: "Phase 1: Schema (required columns)"}
	if res.EventsErr != nil {
		p.errorf("events: %v", res.EventsErr)
	} else if len(res.Events) == 0 {
		p.errorf("events: no data rows")
	}
	if res.PopulationErr != nil {
		p.errorf("population: %v", res.PopulationErr)
	} else if len(res.Population) == 0 {
		p.errorf("population: no data rows")
	}
	return p
}

// ── Phase 2: sighting rows the point map would drop ──

func validateRecords(events []domain.EventRecord) *phase {
	p := &phase{name: "Phase 2: Record Validity (point map)"}
	seen := make(map[int64]int, len(events))
	for i, e := range events {
		line := i + 2
		switch {
		case !e.IDValid:
			p.warnf("line %d: sighting_id is not an integer", line)
		case !e.HasCoordinates():
			p.warnf("line %d (id %d): missing or non-numeric coordinates", line, e.ID)
		case !(e.DurationSeconds > 0):
			p.warnf("line %d (id %d): duration %v is not positive", line, e.ID, e.DurationSeconds)
		}
		if !e.IDValid {
			continue
		}
		if prev, dup := seen[e.ID]; dup {
			p.errorf("line %d: sighting_id %d duplicates line %d", line, e.ID, prev)
			continue
		}
		seen[e.ID] = line
	}
	return p
}

// ── Phase 3: region names agree across events, population, and topology ──

func validateJoins(events []domain.EventRecord, population []domain.PopulationRecord, regions []domain.RegionFeature) *phase {
	p := &phase{name: "Phase 3: Region Joins (choropleth)"}

	topo := make(map[string]bool, len(regions))
	for _, r := range regions {
		topo[r.Name] = true
	}
	pops := make(map[string]float64, len(population))
	for _, row := range population {
		name := strings.TrimSpace(row.Region)
		if _, dup := pops[name]; dup {
			p.errorf("population: region %q listed twice", name)
		}
		pops[name] = row.Population
		if row.Population <= 0 {
			p.warnf("population: region %q has population %v; its rate is 0", name, row.Population)
		}
	}

	counts := make(map[string]int)
	for _, e := range events {
		if name := strings.TrimSpace(e.Region); name != "" {
			counts[name]++
		}
	}
	for _, name := range sortedKeys(counts) {
		if _, ok := pops[name]; !ok {
			p.warnf("events: region %q (%d sightings) has no population; its rate is 0", name, counts[name])
		}
		if !topo[name] {
			p.warnf("events: region %q (%d sightings) is not in the topology", name, counts[name])
		}
	}
	for _, name := range sortedKeys(topo) {
		if _, ok := pops[name]; !ok {
			p.warnf("topology: region %q has no population row", name)
		}
	}
	return p
}

// ── Phase 4: plottable sightings land inside the projection ──
// Only warnings: a topology without the insets still plots their sightings,
// just off the fitted viewport.

func validateProjection(events []domain.EventRecord, proj *geo.Projector) *phase {
	p := &phase{name: "Phase 4: Projection Coverage"}
	vp := proj.Viewport()
	for _, e := range events {
		if !e.Plottable() {
			continue
		}
		pt, ok := proj.Project(e.Lon, e.Lat)
		if !ok {
			p.warnf("id %d (%s): (%.4f, %.4f) is outside every inset", e.ID, e.Region, e.Lat, e.Lon)
			continue
		}
		if pt.X < 0 || pt.Y < 0 || pt.X > vp.Width || pt.Y > vp.Height {
			p.warnf("id %d: projected to (%.1f, %.1f) outside the %gx%g viewport", e.ID, pt.X, pt.Y, vp.Width, vp.Height)
		}
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
