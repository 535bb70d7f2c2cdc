package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/sightings-map/internal/adapter/http"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/dashboard"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/geo"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/tables"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fixedLoader struct{}

func (fixedLoader) Load(context.Context) tables.Result {
	return tables.Result{
		Events: []domain.EventRecord{
			{ID: 7, IDValid: true, Region: "New York", Lat: 42.5, Lon: -75, DurationSeconds: 30},
			{ID: 8, IDValid: true, Region: "Texas", Lat: 30, Lon: -100, DurationSeconds: 60},
		},
		Population: []domain.PopulationRecord{
			{Region: "New York", Population: 2000},
			{Region: "Texas", Population: 4000},
		},
	}
}

func square(name string, lon0, lat0, lon1, lat1 float64) domain.RegionFeature {
	return domain.RegionFeature{Name: name, Polygons: []domain.Polygon{{{
		{Lon: lon0, Lat: lat0}, {Lon: lon1, Lat: lat0}, {Lon: lon1, Lat: lat1}, {Lon: lon0, Lat: lat1}, {Lon: lon0, Lat: lat0},
	}}}}
}

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	proj := geo.New([]domain.RegionFeature{
		square("New York", -79, 41, -73, 45),
		square("Texas", -104, 26, -94, 36),
	}, domain.DefaultViewport)
	reg := dashboard.NewRegistry(proj, fixedLoader{}, clockwork.NewRealClock(), dashboard.Options{
		Viewport:      domain.DefaultViewport,
		Style:         config.DefaultStyle(),
		BatchSize:     10,
		FrameInterval: time.Millisecond,
	}, logger, observability.NewMetricsForTesting())
	t.Cleanup(func() { reg.Close(context.Background()) })
	return httpadapter.NewServer(":0", reg, domain.DefaultViewport, &mockReadiness{err: readyErr}, logger)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func createSession(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		st := decode[dashboard.Status](t, do(t, srv, http.MethodGet, "/sessions/"+id+"/status", ""))
		return !st.Loading && st.PointsTotal == 2 && st.PointsDrawn == 2
	}, 5*time.Second, 5*time.Millisecond)
	return id
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(t, fmt.Errorf("not ready yet"))
	rec := do(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/sessions/nope/status", "/sessions/nope/choropleth", "/sessions/nope/legend"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/sessions/nope", "").Code)
}

func TestChoroplethAndLegend(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)

	rec := do(t, srv, http.MethodGet, "/sessions/"+id+"/choropleth", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cmds := decode[[]domain.DrawCommand](t, rec)
	var regions []string
	for _, c := range cmds {
		if c.Op == domain.OpPath && c.Title != "" {
			regions = append(regions, c.Title)
		}
	}
	assert.ElementsMatch(t, []string{"New York", "Texas"}, regions)

	legend := decode[dashboard.Legend](t, do(t, srv, http.MethodGet, "/sessions/"+id+"/legend", ""))
	assert.True(t, legend.Ready)
	assert.Equal(t, "250.0", legend.Min)
	assert.Equal(t, "500.0", legend.Max)

	rec = do(t, srv, http.MethodGet, "/sessions/"+id+"/choropleth.svg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>New York</title>")
}

func TestMetricBadBodyReturns400(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)

	rec := do(t, srv, http.MethodPut, "/sessions/"+id+"/metric", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/sessions/"+id+"/metric", `{"metric":"rate per million"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rate per million", decode[dashboard.Legend](t, do(t, srv, http.MethodGet, "/sessions/"+id+"/legend", "")).Metric)
}

func TestRegionClickTogglesSelection(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)
	path := "/sessions/" + id + "/choropleth/regions/New%20York/click"

	rec := do(t, srv, http.MethodPost, path, `{"x":10,"y":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[map[string]*string](t, rec)
	require.NotNil(t, sel["region"])
	assert.Equal(t, "New York", *sel["region"])

	rec = do(t, srv, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[map[string]*string](t, rec)["region"])

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/choropleth/regions/Atlantis/click", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/sessions/"+id+"/regions/Texas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["count"])
}

func TestPointActions(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)
	base := "/sessions/" + id

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, base+"/points/7/hover", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, base+"/points/7/unhover", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, base+"/points/99/hover", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, base+"/points/abc/click", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, base+"/points/7/poke", "").Code)

	rec := do(t, srv, http.MethodPost, base+"/points/8/click", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"handled": true, "stop_propagation": true}, decode[map[string]bool](t, rec))

	sel := decode[map[string]*float64](t, do(t, srv, http.MethodGet, base+"/selection", ""))
	require.NotNil(t, sel["point_id"])
	assert.Equal(t, 8.0, *sel["point_id"])

	rec = do(t, srv, http.MethodGet, base+"/sightings/8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Texas", decode[map[string]any](t, rec)["state_full"])

	rec = do(t, srv, http.MethodGet, base+"/points.svg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "<circle"))
}

func TestGestureAndDelete(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)
	base := "/sessions/" + id

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, base+"/points/gesture", "[").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPost, base+"/choropleth/gesture", `{"factor":2,"x":487.5,"y":305}`).Code)

	cmds := decode[[]domain.DrawCommand](t, do(t, srv, http.MethodGet, base+"/choropleth", ""))
	for _, c := range cmds {
		if c.Op == domain.OpTransform {
			require.NotNil(t, c.Transform)
			assert.Equal(t, 2.0, c.Transform.K)
		}
	}

	assert.Equal(t, http.StatusAccepted, do(t, srv, http.MethodPost, base+"/reload", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, base+"/status", "").Code)
}
