package selection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func newTestBridge() (*Bridge, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	return NewBridge("sess-1", clock, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics), metrics
}

func strPtr(s string) *string { return &s }

func TestBridge_RegionFanOutOrder(t *testing.T) {
	b, _ := newTestBridge()
	var calls []string
	b.OnRegionSelected(func(r *string) { calls = append(calls, "first:"+deref(r)) })
	b.OnRegionSelected(func(r *string) { calls = append(calls, "second:"+deref(r)) })
	sink := &recordingSink{}
	b.AddSink(sink)

	b.RegionSelected(strPtr("Texas"))
	b.RegionSelected(nil)

	assert.Equal(t, []string{"first:Texas", "second:Texas", "first:<nil>", "second:<nil>"}, calls)
	require.Len(t, sink.events, 2)
	assert.Equal(t, KindRegion, sink.events[0].Kind)
	assert.Equal(t, "Texas", *sink.events[0].Region)
	assert.Equal(t, "sess-1", sink.events[0].SessionID)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), sink.events[0].SelectedAt)
	assert.Nil(t, sink.events[1].Region)
	assert.Nil(t, b.State().SelectedRegion)
}

func TestBridge_SelectionsIndependent(t *testing.T) {
	b, _ := newTestBridge()
	var points []*int64
	b.OnPointSelected(func(id *int64) { points = append(points, id) })

	b.RegionSelected(strPtr("Ohio"))
	b.PointSelected(1234)

	st := b.State()
	require.NotNil(t, st.SelectedRegion)
	require.NotNil(t, st.SelectedPointID)
	assert.Equal(t, "Ohio", *st.SelectedRegion)
	assert.Equal(t, int64(1234), *st.SelectedPointID)
	require.Len(t, points, 1)
	assert.Equal(t, int64(1234), *points[0])

	b.RegionSelected(nil)
	st = b.State()
	assert.Nil(t, st.SelectedRegion)
	require.NotNil(t, st.SelectedPointID)
}

func TestBridge_StateIsSnapshot(t *testing.T) {
	b, _ := newTestBridge()
	name := "Utah"
	b.RegionSelected(&name)
	name = "Nevada"

	st := b.State()
	assert.Equal(t, "Utah", *st.SelectedRegion)
	*st.SelectedRegion = "Idaho"
	assert.Equal(t, "Utah", *b.State().SelectedRegion)
}

func TestBridge_Reset(t *testing.T) {
	b, _ := newTestBridge()
	sink := &recordingSink{}
	b.AddSink(sink)
	var regions []*string
	var points []*int64
	b.OnRegionSelected(func(r *string) { regions = append(regions, r) })
	b.OnPointSelected(func(id *int64) { points = append(points, id) })

	b.Reset()
	assert.Empty(t, sink.events, "nothing selected, nothing published")

	b.PointSelected(5)
	b.Reset()

	assert.Empty(t, regions)
	require.Len(t, points, 2)
	assert.Nil(t, points[1])
	assert.Equal(t, KindReset, sink.events[len(sink.events)-1].Kind)
	assert.Nil(t, b.State().SelectedPointID)
}

func TestBridge_SinkErrorsAreSwallowed(t *testing.T) {
	b, metrics := newTestBridge()
	failing := &recordingSink{err: errors.New("broker down")}
	ok := &recordingSink{}
	b.AddSink(failing)
	b.AddSink(ok)

	b.PointSelected(9)

	assert.Len(t, ok.events, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SelectionPublishErrors))
	assert.Equal(t, int64(9), *b.State().SelectedPointID)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
