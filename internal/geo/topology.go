package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
	shp "github.com/jonas-p/go-shp"
	geojson "github.com/paulmach/go.geojson"
)

// DefaultNameProperty is the GeoJSON property holding the region name.
const DefaultNameProperty = "name"

// DefaultNameField is the shapefile DBF field holding the region name.
const DefaultNameField = "NAME"

// LoadTopology picks a loader for path: ".shp" is read as an ESRI shapefile,
// ".topojson" or a document of type "Topology" as TopoJSON (regions from
// object, default "states"), anything else as a GeoJSON FeatureCollection.
func LoadTopology(path, nameField, object string) ([]domain.RegionFeature, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		if nameField == "" {
			nameField = DefaultNameField
		}
		return LoadShapefile(path, nameField)
	}
	if nameField == "" {
		nameField = DefaultNameProperty
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".topojson") || isTopology(data) {
		return ParseTopoJSON(data, object, nameField)
	}
	return ParseGeoJSON(data, nameField)
}

func isTopology(data []byte) bool {
	var head struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &head) == nil && head.Type == "Topology"
}

// ParseGeoJSON reads a FeatureCollection of Polygon / MultiPolygon features.
// Features without a name or polygonal geometry are skipped; features that
// share a name are merged into one region.
func ParseGeoJSON(data []byte, nameProperty string) ([]domain.RegionFeature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return regionsFromFeatures(fc, nameProperty), nil
}

func regionsFromFeatures(fc *geojson.FeatureCollection, nameProperty string) []domain.RegionFeature {
	m := newRegionMerger()
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		name, err := f.PropertyString(nameProperty)
		if err != nil || strings.TrimSpace(name) == "" {
			continue
		}

		switch {
		case f.Geometry.IsPolygon():
			m.add(name, polygonFromRings(f.Geometry.Polygon))
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				m.add(name, polygonFromRings(poly))
			}
		}
	}
	return m.regions()
}

// LoadShapefile reads polygon shapes from an ESRI shapefile whose
// coordinates are geographic degrees (X = longitude, Y = latitude).
func LoadShapefile(path, nameField string) ([]domain.RegionFeature, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	nameIdx := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("shapefile %s has no %q field", path, nameField)
	}

	m := newRegionMerger()
	for r.Next() {
		idx, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		name := dbfText(r.ReadAttribute(idx, nameIdx))
		if name == "" {
			continue
		}

		// Each shapefile part is its own ring; holes are not distinguished
		// from outer rings, which is fine for even-odd SVG fills.
		for part := 0; part < len(poly.Parts); part++ {
			start := int(poly.Parts[part])
			end := len(poly.Points)
			if part+1 < len(poly.Parts) {
				end = int(poly.Parts[part+1])
			}
			ring := make(domain.Ring, 0, end-start)
			for _, pt := range poly.Points[start:end] {
				ring = append(ring, domain.LonLat{Lon: pt.X, Lat: pt.Y})
			}
			m.add(name, domain.Polygon{ring})
		}
	}
	return m.regions(), nil
}

// dbfText strips the NUL padding DBF character fields carry to their
// declared width, then surrounding spaces.
func dbfText(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00 "))
}

func polygonFromRings(rings [][][]float64) domain.Polygon {
	poly := make(domain.Polygon, 0, len(rings))
	for _, ring := range rings {
		rr := make(domain.Ring, 0, len(ring))
		for _, c := range ring {
			if len(c) < 2 {
				continue
			}
			rr = append(rr, domain.LonLat{Lon: c[0], Lat: c[1]})
		}
		poly = append(poly, rr)
	}
	return poly
}

// regionMerger collects polygons by name, preserving first-seen order.
type regionMerger struct {
	order []string
	polys map[string][]domain.Polygon
}

func newRegionMerger() *regionMerger {
	return &regionMerger{polys: make(map[string][]domain.Polygon)}
}

func (m *regionMerger) add(name string, poly domain.Polygon) {
	name = strings.TrimSpace(name)
	if _, ok := m.polys[name]; !ok {
		m.order = append(m.order, name)
	}
	m.polys[name] = append(m.polys[name], poly)
}

func (m *regionMerger) regions() []domain.RegionFeature {
	out := make([]domain.RegionFeature, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, domain.RegionFeature{Name: name, Polygons: m.polys[name]})
	}
	return out
}
