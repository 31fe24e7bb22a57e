package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/listing-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "store.json"), discardLogger())
	require.NoError(t, err)
	return s
}

var (
	godfreySt = domain.PropertyAddress{StreetAddress: "13 Godfrey St", Suburb: "Darlington", State: "SA", PostCode: "5047"}
	kyleSt    = domain.PropertyAddress{StreetAddress: "1/5 Kyle St", Suburb: "Glenside", State: "SA", PostCode: "5065"}
)

func record(id string, addr domain.PropertyAddress, lat, lon float64) domain.GeocodedProperty {
	return domain.GeocodedProperty{
		ID:                   id,
		Address:              addr,
		GeographicCoordinate: &domain.GeographicCoordinate{Latitude: lat, Longitude: lon},
		OnMarket:             true,
	}
}

func ids(records []domain.GeocodedProperty) []string {
	out := make([]string, len(records))
	for i := range records {
		out[i] = records[i].ID
	}
	return out
}

func TestNew_BootstrapsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	s, err := New(path, discardLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNew_EmptyPath(t *testing.T) {
	_, err := New("", discardLogger())
	assert.Error(t, err)
}

func TestNew_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"9","address":{"streetAddress":"x","suburb":null,"state":null,"postCode":null},"geographicCoordinate":null,"onMarket":false}]`), 0o644))

	s, err := New(path, discardLogger())
	require.NoError(t, err)

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "9", all[0].ID)
	assert.Nil(t, all[0].GeographicCoordinate)
	assert.False(t, all[0].OnMarket)
}

func TestStore_Scenario(t *testing.T) {
	s := newTestStore(t)

	all, err := s.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, -35.03, 138.56)})
	require.NoError(t, err)
	require.Len(t, all, 1)

	all, err = s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, record("1", godfreySt, -35.03, 138.56), all[0])

	require.NoError(t, s.SetAllToOffMarket())

	found, ok, err := s.FindByAddress(godfreySt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", found.ID)
	assert.False(t, found.OnMarket)

	_, err = s.AddOrUpdate([]domain.GeocodedProperty{
		record("1", godfreySt, -35.03, 138.56),
		record("2", kyleSt, -34.94, 138.64),
	})
	require.NoError(t, err)

	all, err = s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"1", "2"}, ids(all))
	assert.True(t, all[0].OnMarket)
	assert.True(t, all[1].OnMarket)
}

func TestStore_AddOrUpdate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	batch := []domain.GeocodedProperty{
		record("1", godfreySt, -35.03, 138.56),
		record("2", kyleSt, -34.94, 138.64),
	}

	once, err := s.AddOrUpdate(batch)
	require.NoError(t, err)
	twice, err := s.AddOrUpdate(batch)
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second apply changed the store (-once +twice):\n%s", diff)
	}
}

func TestStore_AddOrUpdate_ReplacedRecordsMoveToEnd(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddOrUpdate([]domain.GeocodedProperty{
		record("a", godfreySt, 1, 1),
		record("b", kyleSt, 2, 2),
		record("c", domain.PropertyAddress{StreetAddress: "3 Third St"}, 3, 3),
	})
	require.NoError(t, err)

	updated := record("a", godfreySt, 9, 9)
	all, err := s.AddOrUpdate([]domain.GeocodedProperty{updated})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "a"}, ids(all))
	assert.InDelta(t, 9.0, all[2].GeographicCoordinate.Latitude, 0.0001)
}

func TestStore_AddOrUpdate_DuplicateIDsInBatchLastWins(t *testing.T) {
	s := newTestStore(t)

	all, err := s.AddOrUpdate([]domain.GeocodedProperty{
		record("1", godfreySt, 1, 1),
		record("2", kyleSt, 2, 2),
		record("1", godfreySt, 5, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "1"}, ids(all))
	assert.InDelta(t, 5.0, all[1].GeographicCoordinate.Latitude, 0.0001)
}

func TestStore_AddOrUpdate_RejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, 1, 1)})
	require.NoError(t, err)

	_, err = s.AddOrUpdate([]domain.GeocodedProperty{record("", kyleSt, 2, 2)})
	require.ErrorIs(t, err, domain.ErrEmptyID)

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(all), "store must be unchanged after a rejected batch")
}

func TestStore_RoundTripPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := New(path, discardLogger())
	require.NoError(t, err)

	beds := uint(3)
	baths := 1.5
	land := "455m²"
	price := "AUCTION ON SITE"
	url := "https://www.domain.com.au/1-5-kyle-street-glenside-sa-5065-2018018373"
	written := []domain.GeocodedProperty{
		record("1", godfreySt, -35.03131, 138.55655),
		{
			ID:                "2",
			Address:           domain.PropertyAddress{StreetAddress: "Unparsed address text"},
			BedroomCount:      &beds,
			BathroomCount:     &baths,
			LandSize:          &land,
			Price:             &price,
			DetailPageAddress: &url,
			OnMarket:          false,
		},
	}
	_, err = s.AddOrUpdate(written)
	require.NoError(t, err)

	reopened, err := New(path, discardLogger())
	require.NoError(t, err)
	read, err := reopened.GetAll()
	require.NoError(t, err)

	if diff := cmp.Diff(written, read); diff != "" {
		t.Fatalf("round trip mismatch (-written +read):\n%s", diff)
	}
}

func TestStore_GetAll_RereadsDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := New(path, discardLogger())
	require.NoError(t, err)
	_, err = s.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	_, ok, err := s.FindByAddress(godfreySt)
	require.NoError(t, err)
	assert.False(t, ok, "cache should follow the reloaded file")
}

func TestStore_FindByAddress(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddOrUpdate([]domain.GeocodedProperty{
		record("1", godfreySt, 1, 1),
		record("2", kyleSt, 2, 2),
	})
	require.NoError(t, err)

	found, ok, err := s.FindByAddress(kyleSt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", found.ID)

	_, ok, err = s.FindByAddress(domain.PropertyAddress{StreetAddress: "1/5 Kyle St", Suburb: "Glenside", State: "SA"})
	require.NoError(t, err)
	assert.False(t, ok, "partial address must not match")
}

func TestStore_FindByAddress_LazyLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	seed, err := New(path, discardLogger())
	require.NoError(t, err)
	_, err = seed.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, 1, 1)})
	require.NoError(t, err)

	s, err := New(path, discardLogger())
	require.NoError(t, err)
	found, ok, err := s.FindByAddress(godfreySt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", found.ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, 1, 1)})
	require.NoError(t, err)

	found, _, err := s.FindByAddress(godfreySt)
	require.NoError(t, err)
	found.GeographicCoordinate.Latitude = 99
	found.OnMarket = false

	again, _, err := s.FindByAddress(godfreySt)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, again.GeographicCoordinate.Latitude, 0.0001)
	assert.True(t, again.OnMarket)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	s, err := New(path, discardLogger())
	require.NoError(t, err)

	_, err = s.GetAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode store file")

	_, _, err = s.FindByAddress(godfreySt)
	assert.Error(t, err)
	assert.Error(t, s.SetAllToOffMarket())
}

func TestStore_SetAllToOffMarket_Empty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetAllToOffMarket())

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "store.json"), discardLogger())
	require.NoError(t, err)
	_, err = s.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, 1, 1)})
	require.NoError(t, err)
	require.NoError(t, s.SetAllToOffMarket())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store.json", entries[0].Name())
}

func TestStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := New(path, discardLogger())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), "new store file")

	require.NoError(t, os.Chmod(path, 0o640))
	_, err = s.AddOrUpdate([]domain.GeocodedProperty{record("1", godfreySt, 1, 1)})
	require.NoError(t, err)

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm(), "existing mode kept on rewrite")
}
