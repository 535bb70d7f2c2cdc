// Package aggregate joins sightings against population to derive the
// per-region rate the choropleth is colored by.
package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// PerMillion scales a per-capita rate into sightings per million residents.
const PerMillion = 1e6

// MetricRatePerMillion is the only metric currently computed. Any selector
// value yields it.
const MetricRatePerMillion = "rate per million"

// AggregateRate is a disposable per-render derived value: do not mutate it.
type AggregateRate struct {
	Rates map[string]float64
	// Counts and Populations are exposed for region panels.
	Counts      map[string]int
	Populations map[string]float64
	Min         float64
	Max         float64
}

// Rate returns the region's rate and whether the region has an entry.
func (a AggregateRate) Rate(region string) (float64, bool) {
	v, ok := a.Rates[region]
	return v, ok
}

// Legend renders the domain bounds with one decimal place.
func (a AggregateRate) Legend() (minLabel, maxLabel string) {
	return fmt.Sprintf("%.1f", a.Min), fmt.Sprintf("%.1f", a.Max)
}

// Compute counts events per trimmed region name and divides by population.
// Regions with sightings but no (or zero) population get rate 0 and are kept.
// The domain spans regions with a known population only; when none qualify
// it defaults to [0, 1].
func Compute(events []domain.EventRecord, population []domain.PopulationRecord) AggregateRate {
	counts := make(map[string]int)
	for _, e := range events {
		name := strings.TrimSpace(e.Region)
		if name == "" {
			continue
		}
		counts[name]++
	}

	pops := make(map[string]float64, len(population))
	for _, p := range population {
		pops[strings.TrimSpace(p.Region)] = p.Population
	}

	out := AggregateRate{
		Rates:       make(map[string]float64, len(counts)),
		Counts:      counts,
		Populations: make(map[string]float64, len(counts)),
		Min:         math.Inf(1),
		Max:         math.Inf(-1),
	}

	for region, n := range counts {
		pop, ok := pops[region]
		if !ok || !(pop > 0) || math.IsInf(pop, 0) {
			out.Rates[region] = 0
			continue
		}
		rate := float64(n) / pop * PerMillion
		out.Rates[region] = rate
		out.Populations[region] = pop
		out.Min = math.Min(out.Min, rate)
		out.Max = math.Max(out.Max, rate)
	}

	if math.IsInf(out.Min, 1) {
		out.Min, out.Max = 0, 1
	}
	return out
}

// ForMetric computes the aggregate for a metric selector. Every selector
// currently maps to MetricRatePerMillion; known reports whether the
// selector named it.
func ForMetric(metric string, tables domain.Tables) (agg AggregateRate, known bool) {
	known = strings.EqualFold(strings.TrimSpace(metric), MetricRatePerMillion)
	return Compute(tables.Events, tables.Population), known
}
