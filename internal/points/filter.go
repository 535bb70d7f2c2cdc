// Package points scatters individual sightings over the base map, drawing
// them in fixed-size batches one frame at a time.
package points

import (
	"math/rand/v2"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// DefaultModulus keeps roughly one sighting in five.
const DefaultModulus = 5

// RandomBucket draws the kept residue once per mount.
const RandomBucket = -1

// Sampling thins the plotted set to ids with id mod Modulus == Bucket.
// Modulus 0 or 1 disables sampling.
type Sampling struct {
	Modulus int
	Bucket  int
}

// Enabled reports whether sampling drops anything.
func (s Sampling) Enabled() bool {
	return s.Modulus > 1
}

// Resolve fixes a RandomBucket to a concrete residue drawn from rng. The
// result is stable for as long as the caller keeps it.
func (s Sampling) Resolve(rng *rand.Rand) Sampling {
	if !s.Enabled() || s.Bucket != RandomBucket {
		return s
	}
	s.Bucket = rng.IntN(s.Modulus)
	return s
}

// Keep reports whether id falls in the sampled residue class.
func (s Sampling) Keep(id int64) bool {
	if !s.Enabled() {
		return true
	}
	m := int64(s.Modulus)
	r := ((id % m) + m) % m
	return r == int64(s.Bucket)
}

// Projector places a coordinate on the map.
type Projector interface {
	Project(lon, lat float64) (domain.Point, bool)
}

// Point is a filtered, projected sighting.
type Point struct {
	ID int64
	domain.Point
}

// Filter returns the plottable sightings in input order: finite coordinates,
// positive duration, a numeric id, inside the sampled residue class, and
// projectable. s must already be resolved. dropped counts invalid records;
// sampled-out and unprojectable records are not counted.
func Filter(events []domain.EventRecord, proj Projector, s Sampling) (out []Point, dropped int) {
	out = make([]Point, 0, len(events))
	for _, e := range events {
		if !e.Plottable() {
			dropped++
			continue
		}
		if !s.Keep(e.ID) {
			continue
		}
		pt, ok := proj.Project(e.Lon, e.Lat)
		if !ok {
			continue
		}
		out = append(out, Point{ID: e.ID, Point: pt})
	}
	return out, dropped
}
