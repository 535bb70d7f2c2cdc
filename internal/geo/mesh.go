package geo

import (
	"math"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// vertexKey quantizes a coordinate so vertices shared by neighbouring
// regions compare equal despite float noise from format conversion.
type vertexKey struct{ lon, lat int64 }

type edgeKey struct{ a, b vertexKey }

func keyOf(c domain.LonLat) vertexKey {
	return vertexKey{lon: int64(math.Round(c.Lon * 1e6)), lat: int64(math.Round(c.Lat * 1e6))}
}

func newEdgeKey(a, b domain.LonLat) edgeKey {
	ka, kb := keyOf(a), keyOf(b)
	if kb.lon < ka.lon || (kb.lon == ka.lon && kb.lat < ka.lat) {
		ka, kb = kb, ka
	}
	return edgeKey{a: ka, b: kb}
}

// forEachEdge visits every ring edge, closing rings that omit the final
// vertex.
func forEachEdge(region domain.RegionFeature, fn func(a, b domain.LonLat)) {
	for _, poly := range region.Polygons {
		for _, ring := range poly {
			n := len(ring)
			if n < 2 {
				continue
			}
			for i := 0; i < n-1; i++ {
				fn(ring[i], ring[i+1])
			}
			if keyOf(ring[0]) != keyOf(ring[n-1]) {
				fn(ring[n-1], ring[0])
			}
		}
	}
}

// buildMesh emits each edge owned by two or more distinct regions exactly
// once, chaining consecutive edges into a single subpath.
func (p *Projector) buildMesh() string {
	owners := make(map[edgeKey]int)
	for i, r := range p.regions {
		forEachEdge(r, func(a, b domain.LonLat) {
			k := newEdgeKey(a, b)
			switch prev, seen := owners[k]; {
			case !seen:
				owners[k] = i
			case prev != i && prev >= 0:
				owners[k] = -1 // shared by at least two regions
			}
		})
	}

	var sb strings.Builder
	emitted := make(map[edgeKey]bool)
	var last domain.Point
	open := false

	for _, r := range p.regions {
		forEachEdge(r, func(a, b domain.LonLat) {
			k := newEdgeKey(a, b)
			if owners[k] != -1 || emitted[k] {
				open = false
				return
			}
			emitted[k] = true

			pa, okA := p.Project(a.Lon, a.Lat)
			pb, okB := p.Project(b.Lon, b.Lat)
			if !okA || !okB {
				open = false
				return
			}
			if !open || pa != last {
				sb.WriteByte('M')
				writePoint(&sb, pa)
			}
			sb.WriteByte('L')
			writePoint(&sb, pb)
			last = pb
			open = true
		})
		open = false
	}
	return sb.String()
}
