package domain

import (
	"context"
	"log/slog"
	"strings"
)

// Values of EventRecord.GeoSource.
const (
	GeoSourceForward = "forward"
	GeoSourceFailed  = "failed"
)

// GeocodeStats summarizes one FillMissingCoordinates pass.
type GeocodeStats struct {
	Lookups int
	Filled  int
	Failed  int
	Skipped int
}

// FillMissingCoordinates forward-geocodes sightings that name a city and
// state but carry no usable coordinates. Each distinct city/state pair is
// looked up once; at most maxLookups pairs are sent to the geocoder (0 means
// no limit) and the rest are left untouched and counted as skipped. A
// failing lookup marks its rows GeoSourceFailed and never aborts the pass.
// Rows are updated in place.
func FillMissingCoordinates(ctx context.Context, events []EventRecord, geocoder Geocoder, maxLookups int, logger *slog.Logger) GeocodeStats {
	var stats GeocodeStats
	if geocoder == nil {
		return stats
	}

	type outcome struct {
		result GeocodingResult
		ok     bool
	}
	seen := make(map[string]*outcome)

	for i := range events {
		e := &events[i]
		if e.HasCoordinates() || e.City == "" || e.State == "" {
			continue
		}
		key := strings.ToLower(e.City) + "|" + strings.ToLower(e.State)
		out, done := seen[key]
		if !done {
			if ctx.Err() != nil || (maxLookups > 0 && stats.Lookups >= maxLookups) {
				stats.Skipped++
				continue
			}
			stats.Lookups++
			out = &outcome{}
			result, err := geocoder.ForwardGeocode(ctx, e.City, e.State)
			if err != nil {
				logger.Warn("forward geocoding failed",
					"sighting_id", e.ID,
					"city", e.City,
					"state", e.State,
					"error", err,
				)
			} else {
				out.result, out.ok = result, result.Found()
			}
			seen[key] = out
		}

		if !out.ok {
			e.GeoSource = GeoSourceFailed
			stats.Failed++
			continue
		}
		e.Lat = out.result.Lat
		e.Lon = out.result.Lon
		e.PlaceName = out.result.PlaceName
		e.GeoConfidence = out.result.Confidence
		e.GeoSource = GeoSourceForward
		stats.Filled++
	}
	return stats
}
