package points

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/stretchr/testify/assert"
)

// flatProjector accepts the continental box and projects linearly.
type flatProjector struct{}

func (flatProjector) Project(lon, lat float64) (domain.Point, bool) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -125 || lon > -66 || lat < 24 || lat > 50 {
		return domain.Point{}, false
	}
	return domain.Point{X: (lon + 125) * 10, Y: (50 - lat) * 10}, true
}

func sighting(id int64, lat, lon, duration float64) domain.EventRecord {
	return domain.EventRecord{ID: id, IDValid: true, Lat: lat, Lon: lon, DurationSeconds: duration, Region: "Ohio"}
}

func TestFilter(t *testing.T) {
	events := []domain.EventRecord{
		sighting(1, 40, -83, 30),
		sighting(2, 40, -83, 0),
		sighting(3, 40, -83, -5),
		sighting(4, math.NaN(), -83, 30),
		sighting(5, 40, math.Inf(1), 30),
		sighting(6, 48.85, 2.35, 30),
		{ID: 0, IDValid: false, Lat: 40, Lon: -83, DurationSeconds: 30},
		sighting(8, 35, -100, 600),
	}

	got, dropped := Filter(events, flatProjector{}, Sampling{})

	assert.Equal(t, []int64{1, 8}, ids(got))
	assert.Equal(t, 5, dropped)
	assert.Equal(t, domain.Point{X: 420, Y: 100}, got[0].Point)
}

func TestFilter_Deterministic(t *testing.T) {
	var events []domain.EventRecord
	for i := int64(0); i < 50; i++ {
		events = append(events, sighting(i, 30+float64(i%10), -100+float64(i%7), float64(i%4)))
	}
	a, _ := Filter(events, flatProjector{}, Sampling{Modulus: 5, Bucket: 2})
	b, _ := Filter(events, flatProjector{}, Sampling{Modulus: 5, Bucket: 2})
	assert.Equal(t, a, b)
	for _, p := range a {
		assert.Equal(t, int64(2), p.ID%5)
	}
}

func TestFilter_DurationNotPositiveExcluded(t *testing.T) {
	got, _ := Filter([]domain.EventRecord{sighting(10, 40, -75, 0)}, flatProjector{}, Sampling{})
	assert.Empty(t, got)
}

func TestSampling(t *testing.T) {
	t.Run("disabled keeps everything", func(t *testing.T) {
		for _, s := range []Sampling{{Modulus: 0}, {Modulus: 1, Bucket: 3}} {
			assert.False(t, s.Enabled())
			assert.True(t, s.Keep(7))
			assert.True(t, s.Keep(-3))
		}
	})

	t.Run("fixed bucket", func(t *testing.T) {
		s := Sampling{Modulus: 5, Bucket: 3}
		assert.True(t, s.Keep(3))
		assert.True(t, s.Keep(13))
		assert.True(t, s.Keep(-2))
		assert.False(t, s.Keep(4))
		assert.Equal(t, s, s.Resolve(nil))
	})

	t.Run("random bucket drawn once from seed", func(t *testing.T) {
		s := Sampling{Modulus: DefaultModulus, Bucket: RandomBucket}
		a := s.Resolve(rand.New(rand.NewPCG(7, 7)))
		b := s.Resolve(rand.New(rand.NewPCG(7, 7)))

		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, a.Bucket, 0)
		assert.Less(t, a.Bucket, DefaultModulus)
	})
}

func ids(pts []Point) []int64 {
	out := make([]int64, len(pts))
	for i, p := range pts {
		out[i] = p.ID
	}
	return out
}
