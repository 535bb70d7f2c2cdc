package domain

import (
	"math"
	"time"
)

// EventRecord is one sighting row. It is read-only once loaded.
type EventRecord struct {
	ID       int64  `json:"sighting_id"`
	IDValid  bool   `json:"-"`
	Region   string `json:"state_full"`
	State    string `json:"state,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	Shape    string `json:"shape,omitempty"`
	Comments string `json:"comments,omitempty"`

	// Lat and Lon are NaN when the source value was missing or non-numeric.
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`

	DurationSeconds float64   `json:"duration_seconds"`
	DurationText    string    `json:"duration,omitempty"`
	OccurredAt      time.Time `json:"datetime"`
	DatePosted      string    `json:"date_posted,omitempty"`

	// Set when coordinates were filled in by forward geocoding.
	GeoSource     string  `json:"geo_source,omitempty"`
	PlaceName     string  `json:"place_name,omitempty"`
	GeoConfidence float64 `json:"geo_confidence,omitempty"`
}

// HasCoordinates reports whether both coordinates are finite numbers.
func (e EventRecord) HasCoordinates() bool {
	return isFinite(e.Lat) && isFinite(e.Lon)
}

// Plottable reports whether the record may be placed on the point map:
// finite coordinates, a positive duration, and a numeric identifier.
func (e EventRecord) Plottable() bool {
	return e.HasCoordinates() && e.DurationSeconds > 0 && e.IDValid
}

// PopulationRecord is one row of the population reference table.
type PopulationRecord struct {
	Region     string  `json:"Area_Name"`
	Population float64 `json:"CENSUS_2020_POP"`
}

// Tables bundles the two source tables a view renders from.
type Tables struct {
	Events     []EventRecord
	Population []PopulationRecord
}

// SelectionState holds the independent selections of the two maps.
// A nil field means nothing is selected.
type SelectionState struct {
	SelectedRegion  *string `json:"selected_region"`
	SelectedPointID *int64  `json:"selected_point_id"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
