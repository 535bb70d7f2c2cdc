package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/couchcryptid/sightings-map/internal/domain"
	geojson "github.com/paulmach/go.geojson"
)

// DefaultTopoObject is the TopoJSON object holding the regions, as in
// us-atlas "objects.states".
const DefaultTopoObject = "states"

type topology struct {
	Type      string                  `json:"type"`
	Transform *topoTransform          `json:"transform"`
	Objects   map[string]topoGeometry `json:"objects"`
	Arcs      [][][]float64           `json:"arcs"`
}

type topoTransform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type       string          `json:"type"`
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Arcs       json.RawMessage `json:"arcs"`
	Geometries []topoGeometry  `json:"geometries"`
}

// ParseTopoJSON reads the regions of one object of a TopoJSON topology.
// Polygon and MultiPolygon geometries are stitched from their arcs into
// GeoJSON features and then handled like ParseGeoJSON input; other geometry
// types are skipped.
func ParseTopoJSON(data []byte, object, nameProperty string) ([]domain.RegionFeature, error) {
	fc, err := topoFeatures(data, object)
	if err != nil {
		return nil, err
	}
	return regionsFromFeatures(fc, nameProperty), nil
}

func topoFeatures(data []byte, object string) (*geojson.FeatureCollection, error) {
	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("parse topojson: %w", err)
	}
	if topo.Type != "Topology" {
		return nil, fmt.Errorf("parse topojson: type %q is not Topology", topo.Type)
	}
	if object == "" {
		object = DefaultTopoObject
	}
	obj, ok := topo.Objects[object]
	if !ok {
		names := make([]string, 0, len(topo.Objects))
		for name := range topo.Objects {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("topojson has no object %q (have %v)", object, names)
	}

	arcs := decodeArcs(topo.Arcs, topo.Transform)
	fc := geojson.NewFeatureCollection()

	geoms := []topoGeometry{obj}
	if obj.Type == "GeometryCollection" {
		geoms = obj.Geometries
	}
	for _, g := range geoms {
		f, err := topoFeature(g, arcs)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", object, err)
		}
		if f != nil {
			fc.AddFeature(f)
		}
	}
	return fc, nil
}

func topoFeature(g topoGeometry, arcs [][][]float64) (*geojson.Feature, error) {
	var f *geojson.Feature
	switch g.Type {
	case "Polygon":
		var refs [][]int
		if err := json.Unmarshal(g.Arcs, &refs); err != nil {
			return nil, fmt.Errorf("polygon arcs: %w", err)
		}
		poly, err := stitchPolygon(refs, arcs)
		if err != nil {
			return nil, err
		}
		f = geojson.NewPolygonFeature(poly)
	case "MultiPolygon":
		var refs [][][]int
		if err := json.Unmarshal(g.Arcs, &refs); err != nil {
			return nil, fmt.Errorf("multipolygon arcs: %w", err)
		}
		polys := make([][][][]float64, 0, len(refs))
		for _, r := range refs {
			poly, err := stitchPolygon(r, arcs)
			if err != nil {
				return nil, err
			}
			polys = append(polys, poly)
		}
		f = geojson.NewMultiPolygonFeature(polys...)
	default:
		return nil, nil
	}
	f.ID = g.ID
	if g.Properties != nil {
		f.Properties = g.Properties
	}
	return f, nil
}

// decodeArcs resolves quantized, delta-encoded arcs to absolute positions.
func decodeArcs(raw [][][]float64, tr *topoTransform) [][][]float64 {
	out := make([][][]float64, len(raw))
	for i, arc := range raw {
		pts := make([][]float64, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if tr == nil {
				pts = append(pts, []float64{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			pts = append(pts, []float64{x*tr.Scale[0] + tr.Translate[0], y*tr.Scale[1] + tr.Translate[1]})
		}
		out[i] = pts
	}
	return out
}

var errArcIndex = errors.New("arc index out of range")

// stitchPolygon joins each ring's arcs end to start. A negative index ~i
// names arc i traversed backwards.
func stitchPolygon(rings [][]int, arcs [][][]float64) ([][][]float64, error) {
	poly := make([][][]float64, 0, len(rings))
	for _, refs := range rings {
		var ring [][]float64
		for _, ref := range refs {
			idx, reverse := ref, false
			if ref < 0 {
				idx, reverse = ^ref, true
			}
			if idx >= len(arcs) {
				return nil, fmt.Errorf("%w: %d", errArcIndex, ref)
			}
			arc := arcs[idx]
			if len(ring) > 0 && len(arc) > 0 {
				ring = ring[:len(ring)-1]
			}
			if reverse {
				for i := len(arc) - 1; i >= 0; i-- {
					ring = append(ring, arc[i])
				}
			} else {
				ring = append(ring, arc...)
			}
		}
		poly = append(poly, ring)
	}
	return poly, nil
}
