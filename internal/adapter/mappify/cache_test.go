package mappify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) Geocode(_ context.Context, _ domain.PropertyAddress) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func addr(street string) domain.PropertyAddress {
	return domain.PropertyAddress{StreetAddress: street, Suburb: "Unley", State: "SA", PostCode: "5061"}
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Latitude: -34.95, Longitude: 138.6, Confidence: 0.9}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, metrics)

	r1, err := cached.Geocode(context.Background(), addr("5 Edmund Avenue"))
	require.NoError(t, err)
	r2, err := cached.Geocode(context.Background(), addr("5 Edmund Avenue"))
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")), 0.0001)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Geocode(context.Background(), addr("5 Edmund Avenue"))
	_, _ = cached.Geocode(context.Background(), addr("7 Edmund Avenue"))

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_PostcodeIsPartOfKey(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	a := addr("5 Edmund Avenue")
	b := a
	b.PostCode = ""

	_, _ = cached.Geocode(context.Background(), a)
	_, _ = cached.Geocode(context.Background(), b)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("upstream down")}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Geocode(context.Background(), addr("5 Edmund Avenue"))
	require.Error(t, err)

	inner.err = nil
	_, err = cached.Geocode(context.Background(), addr("5 Edmund Avenue"))
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put(addr("a"), domain.GeocodingResult{Latitude: 1})
	c.put(addr("b"), domain.GeocodingResult{Latitude: 2})

	result, ok := c.get(addr("a"))
	assert.True(t, ok)
	assert.InDelta(t, 1.0, result.Latitude, 0.0001)

	_, ok = c.get(addr("missing"))
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put(addr("a"), domain.GeocodingResult{Latitude: 1})
	c.put(addr("b"), domain.GeocodingResult{Latitude: 2})
	c.put(addr("c"), domain.GeocodingResult{Latitude: 3}) // evicts "a"

	_, ok := c.get(addr("a"))
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get(addr("b"))
	assert.True(t, ok)
	assert.InDelta(t, 2.0, result.Latitude, 0.0001)

	result, ok = c.get(addr("c"))
	assert.True(t, ok)
	assert.InDelta(t, 3.0, result.Latitude, 0.0001)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put(addr("a"), domain.GeocodingResult{Latitude: 1})
	c.put(addr("b"), domain.GeocodingResult{Latitude: 2})

	c.get(addr("a"))

	// "b" is now least recently used.
	c.put(addr("c"), domain.GeocodingResult{Latitude: 3})

	_, ok := c.get(addr("a"))
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get(addr("b"))
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put(addr("a"), domain.GeocodingResult{Latitude: 1})
	c.put(addr("a"), domain.GeocodingResult{Latitude: 2})

	result, ok := c.get(addr("a"))
	assert.True(t, ok)
	assert.InDelta(t, 2.0, result.Latitude, 0.0001)
}
