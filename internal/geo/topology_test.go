package geo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeatureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Westland"},
     "geometry": {"type": "Polygon", "coordinates": [[[-100,35],[-95,35],[-95,40],[-100,40],[-100,35]]]}},
    {"type": "Feature", "properties": {"name": "Islands"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[-80,30],[-79,30],[-79,31],[-80,30]]],
       [[[-78,30],[-77,30],[-77,31],[-78,30]]]
     ]}},
    {"type": "Feature", "properties": {"name": "Westland"},
     "geometry": {"type": "Polygon", "coordinates": [[[-101,41],[-100,41],[-100,42],[-101,41]]]}},
    {"type": "Feature", "properties": {"id": 7},
     "geometry": {"type": "Polygon", "coordinates": [[[-90,35],[-89,35],[-89,36],[-90,35]]]}},
    {"type": "Feature", "properties": {"name": "Lighthouse"},
     "geometry": {"type": "Point", "coordinates": [-70, 43]}}
  ]
}`

func TestParseGeoJSON(t *testing.T) {
	regions, err := ParseGeoJSON([]byte(testFeatureCollection), DefaultNameProperty)
	require.NoError(t, err)

	require.Len(t, regions, 2)
	assert.Equal(t, "Westland", regions[0].Name)
	assert.Len(t, regions[0].Polygons, 2, "same-name features merge")
	assert.Equal(t, "Islands", regions[1].Name)
	assert.Len(t, regions[1].Polygons, 2)
	assert.Equal(t, -100.0, regions[0].Polygons[0][0][0].Lon)
	assert.Equal(t, 35.0, regions[0].Polygons[0][0][0].Lat)
}

func TestParseGeoJSON_Invalid(t *testing.T) {
	_, err := ParseGeoJSON([]byte("{not json"), DefaultNameProperty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse geojson")
}

func TestLoadTopology_GeoJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.json")
	require.NoError(t, os.WriteFile(path, []byte(testFeatureCollection), 0o600))

	regions, err := LoadTopology(path, "", "")
	require.NoError(t, err)
	assert.Len(t, regions, 2)
}

func TestLoadTopology_MissingFile(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "nope.json"), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read topology")
}

func TestLoadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.shp")
	writeTestShapefile(t, path)

	regions, err := LoadTopology(path, "", "")
	require.NoError(t, err)

	require.Len(t, regions, 2)
	assert.Equal(t, []string{"Westland", "Eastland"}, []string{regions[0].Name, regions[1].Name},
		"names carry no DBF padding")
	require.Len(t, regions[0].Polygons, 1)
	assert.Equal(t, -100.0, regions[0].Polygons[0][0][0].Lon)
}

func TestLoadShapefile_MissingNameField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.shp")
	writeTestShapefile(t, path)

	_, err := LoadShapefile(path, "STUSPS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STUSPS")
}

func writeTestShapefile(t *testing.T, path string) {
	t.Helper()

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 40)}))

	shapes := []struct {
		name string
		pts  []shp.Point
	}{
		{"Westland", []shp.Point{{X: -100, Y: 35}, {X: -95, Y: 35}, {X: -95, Y: 40}, {X: -100, Y: 40}, {X: -100, Y: 35}}},
		{"Eastland", []shp.Point{{X: -95, Y: 35}, {X: -90, Y: 35}, {X: -90, Y: 40}, {X: -95, Y: 40}, {X: -95, Y: 35}}},
	}
	for _, s := range shapes {
		line := shp.NewPolyLine([][]shp.Point{s.pts})
		poly := shp.Polygon(*line)
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, s.name))
	}
	w.Close()

	// go-shp's writer names the attribute file "<base>dbf"; readers look for
	// "<base>.dbf".
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err = os.Stat(base + ".dbf")
	require.NoError(t, err)
}

func TestDBFText(t *testing.T) {
	assert.Equal(t, "Texas", dbfText("Texas\x00\x00\x00"))
	assert.Equal(t, "New York", dbfText("  New York   \x00\x00"))
	assert.Equal(t, "", dbfText("\x00\x00"))
}
