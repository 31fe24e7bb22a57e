package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
	"github.com/couchcryptid/listing-etl/internal/store"
)

// --- mocks shared by the pipeline tests ---

type mockSource struct {
	listings []domain.RawListing
	err      error
	calls    int
	criteria domain.SearchCriteria
}

func (m *mockSource) SearchProperties(_ context.Context, criteria domain.SearchCriteria) ([]domain.RawListing, error) {
	m.calls++
	m.criteria = criteria
	return m.listings, m.err
}

type countingGeocoder struct {
	calls   int
	results map[domain.PropertyAddress]domain.GeocodingResult
	err     error
	// onCall runs before each lookup; tests use it to advance a fake clock.
	onCall func()
}

func (m *countingGeocoder) Geocode(_ context.Context, addr domain.PropertyAddress) (domain.GeocodingResult, error) {
	m.calls++
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return domain.GeocodingResult{}, m.err
	}
	if r, ok := m.results[addr]; ok {
		return r, nil
	}
	return domain.GeocodingResult{Latitude: -34.9, Longitude: 138.6, Confidence: 1}, nil
}

type recordingSink struct {
	exports [][]domain.GeocodedProperty
	err     error
}

func (m *recordingSink) Export(_ context.Context, records []domain.GeocodedProperty) error {
	m.exports = append(m.exports, records)
	return m.err
}

// --- helpers ---

var (
	godfreySt = domain.PropertyAddress{StreetAddress: "13 Godfrey St", Suburb: "Darlington", State: "SA", PostCode: "5047"}
	kyleSt    = domain.PropertyAddress{StreetAddress: "1/5 Kyle St", Suburb: "Glenside", State: "SA", PostCode: "5065"}
	edmundAve = domain.PropertyAddress{StreetAddress: "5 Edmund Ave", Suburb: "Unley", State: "SA", PostCode: "5061"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "store.json"), discardLogger())
	require.NoError(t, err)
	return s
}

func seedStore(t *testing.T, s *store.Store, records ...domain.GeocodedProperty) {
	t.Helper()
	_, err := s.AddOrUpdate(records)
	require.NoError(t, err)
}

func storedProperty(id string, addr domain.PropertyAddress, lat, lon float64) domain.GeocodedProperty {
	return domain.NewGeocodedProperty(
		domain.RawListing{ID: id, Address: addr},
		&domain.GeographicCoordinate{Latitude: lat, Longitude: lon},
	)
}

func listing(id string, addr domain.PropertyAddress) domain.RawListing {
	beds := uint(3)
	price := "$850,000"
	return domain.RawListing{
		ID:                id,
		Address:           addr,
		BedroomCount:      &beds,
		Price:             &price,
		DetailPageAddress: "https://www.domain.com.au/" + id,
	}
}

func testCriteria() domain.SearchCriteria {
	return domain.DefaultSearchCriteria()
}

func byID(records []domain.GeocodedProperty) map[string]domain.GeocodedProperty {
	out := make(map[string]domain.GeocodedProperty, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}

func fixedClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC))
}

var errUpstream = errors.New("upstream unavailable")
