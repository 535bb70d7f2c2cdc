package mapbox

import (
	"context"
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

type place struct{ city, state string }

func placeKey(city, state string) place {
	return place{
		city:  strings.ToLower(strings.TrimSpace(city)),
		state: strings.ToLower(strings.TrimSpace(state)),
	}
}

// CachedGeocoder memoizes successful lookups per city and state, ignoring
// case and surrounding spaces. Safe for concurrent use.
type CachedGeocoder struct {
	inner   domain.Geocoder
	places  *lru.Cache[place, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder bounds the cache to size entries, at least one.
func NewCachedGeocoder(inner domain.Geocoder, size int, metrics *observability.Metrics) *CachedGeocoder {
	places, err := lru.New[place, domain.GeocodingResult](max(size, 1))
	if err != nil {
		panic(err) // unreachable: size >= 1
	}
	return &CachedGeocoder{inner: inner, places: places, metrics: metrics}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, city, state string) (domain.GeocodingResult, error) {
	key := placeKey(city, state)
	if hit, ok := c.places.Get(key); ok {
		c.metrics.GeocodeCacheLookups.WithLabelValues("hit").Inc()
		return hit, nil
	}
	c.metrics.GeocodeCacheLookups.WithLabelValues("miss").Inc()

	res, err := c.inner.ForwardGeocode(ctx, city, state)
	if err != nil || !res.Found() {
		// not memoized; the next table load asks again
		return res, err
	}
	c.places.Add(key, res)
	return res, nil
}

// Len returns the number of memoized places.
func (c *CachedGeocoder) Len() int {
	return c.places.Len()
}
