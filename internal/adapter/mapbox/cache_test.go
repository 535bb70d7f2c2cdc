package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGeocoder answers from a fixed table and records every query.
type stubGeocoder struct {
	known   map[string]domain.GeocodingResult
	err     error
	queries []string
}

func (s *stubGeocoder) ForwardGeocode(_ context.Context, city, state string) (domain.GeocodingResult, error) {
	s.queries = append(s.queries, city+", "+state)
	if s.err != nil {
		return domain.GeocodingResult{}, s.err
	}
	return s.known[city], nil
}

func newStub() *stubGeocoder {
	return &stubGeocoder{known: map[string]domain.GeocodingResult{
		"roswell": {Lat: 33.39, Lon: -104.52, PlaceName: "Roswell"},
		"erie":    {Lat: 42.13, Lon: -80.09, PlaceName: "Erie"},
		"marfa":   {Lat: 30.31, Lon: -104.02, PlaceName: "Marfa"},
	}}
}

func TestCachedGeocoder_FoldsCaseAndSpace(t *testing.T) {
	stub := newStub()
	metrics := observability.NewMetricsForTesting()
	g := NewCachedGeocoder(stub, 10, metrics)
	ctx := context.Background()

	first, err := g.ForwardGeocode(ctx, "roswell", "nm")
	require.NoError(t, err)
	again, err := g.ForwardGeocode(ctx, " ROSWELL", "NM ")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, []string{"roswell, nm"}, stub.queries)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCacheLookups.WithLabelValues("miss")))
}

func TestCachedGeocoder_StateIsPartOfKey(t *testing.T) {
	stub := newStub()
	g := NewCachedGeocoder(stub, 10, observability.NewMetricsForTesting())

	_, _ = g.ForwardGeocode(context.Background(), "erie", "pa")
	_, _ = g.ForwardGeocode(context.Background(), "erie", "co")

	assert.Len(t, stub.queries, 2)
	assert.Equal(t, 2, g.Len())
}

func TestCachedGeocoder_SkipsMissesAndErrors(t *testing.T) {
	tests := []struct {
		name string
		stub *stubGeocoder
	}{
		{"not found", &stubGeocoder{}},
		{"upstream error", &stubGeocoder{err: errors.New("429 too many requests")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewCachedGeocoder(tt.stub, 10, observability.NewMetricsForTesting())

			_, err1 := g.ForwardGeocode(context.Background(), "atlantis", "zz")
			_, err2 := g.ForwardGeocode(context.Background(), "atlantis", "zz")

			assert.Equal(t, tt.stub.err, err1)
			assert.Equal(t, tt.stub.err, err2)
			assert.Len(t, tt.stub.queries, 2, "nothing memoized")
			assert.Zero(t, g.Len())
		})
	}
}

func TestCachedGeocoder_EvictsLeastRecentlyUsed(t *testing.T) {
	stub := newStub()
	g := NewCachedGeocoder(stub, 2, observability.NewMetricsForTesting())
	ctx := context.Background()

	for _, city := range []string{"roswell", "erie", "roswell", "marfa", "roswell", "erie"} {
		_, err := g.ForwardGeocode(ctx, city, "us")
		require.NoError(t, err)
	}

	// roswell stays warm; erie is pushed out by marfa and fetched again.
	assert.Equal(t, []string{"roswell, us", "erie, us", "marfa, us", "erie, us"}, stub.queries)
	assert.Equal(t, 2, g.Len())
}

func TestNewCachedGeocoder_NonPositiveSize(t *testing.T) {
	g := NewCachedGeocoder(newStub(), 0, observability.NewMetricsForTesting())

	_, err := g.ForwardGeocode(context.Background(), "marfa", "tx")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}
