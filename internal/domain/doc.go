// Package domain models the sightings dashboard: the two input tables, the
// region topology, view/selection state, and the draw commands renderers emit.
//
// # Input Tables
//
// Sightings rows come from the cleaned NUFORC export. Column names are an
// external contract and are matched case-sensitively:
//
//	datetime, city, state, country, shape, duration (seconds),
//	duration (hours/min), comments, date posted, latitude, longitude,
//	state_full, sighting_id
//
// "state_full" is the full region name (e.g. "Pennsylvania") and is the join
// key against the population table. "state" is the two-letter abbreviation
// and is carried only for display.
//
// Population rows come from the USDA ERS county estimates pivoted to one row
// per area:
//
//	Area_Name, CENSUS_2020_POP
//
// # Validity
//
// Sighting coordinates, duration and identifier are parsed leniently: a value
// that does not parse is kept as "invalid" rather than failing the row, so the
// per-region counts still see every sighting while the point map can drop the
// row. See [EventRecord.Plottable].
//
// # Coordinates
//
// Geographic coordinates are WGS-84 degrees. Screen coordinates are pixels in
// a fixed viewport with the origin at the top-left corner; y grows downward.
package domain
