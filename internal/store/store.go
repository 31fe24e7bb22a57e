// Package store persists geocoded property records in a single JSON document.
//
// The document is a JSON array of records. The in-memory cache is loaded
// lazily on first use; GetAll always rereads the file because the file, not the
// cache, is the source of truth. The store assumes it is the only writer of the
// file for the duration of a run.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/listing-etl/internal/domain"
)

// Store is the durable collection of geocoded property records.
type Store struct {
	path   string
	logger *slog.Logger

	loaded  bool
	records []domain.GeocodedProperty
}

// New opens the store at path, creating the file with an empty collection if
// it does not exist yet.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	s := &Store{path: path, logger: logger}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// FindByAddress returns the first record whose address equals addr.
func (s *Store) FindByAddress(addr domain.PropertyAddress) (domain.GeocodedProperty, bool, error) {
	if err := s.ensureLoaded(); err != nil {
		return domain.GeocodedProperty{}, false, err
	}
	for i := range s.records {
		if s.records[i].Address == addr {
			return s.records[i].Clone(), true, nil
		}
	}
	return domain.GeocodedProperty{}, false, nil
}

// GetAll reloads the collection from disk and returns it.
func (s *Store) GetAll() ([]domain.GeocodedProperty, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return domain.CloneAll(s.records), nil
}

// AddOrUpdate replaces every cached record sharing an id with an incoming
// record, appends the incoming records in order, and persists the result.
// Records that were not replaced keep their position. When the batch holds the
// same id more than once, the last occurrence wins.
func (s *Store) AddOrUpdate(records []domain.GeocodedProperty) ([]domain.GeocodedProperty, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	incoming := dedupeByID(records)
	replaced := make(map[string]struct{}, len(incoming))
	for i := range incoming {
		if err := incoming[i].Validate(); err != nil {
			return nil, fmt.Errorf("add or update record %d: %w", i, err)
		}
		replaced[incoming[i].ID] = struct{}{}
	}

	next := make([]domain.GeocodedProperty, 0, len(s.records)+len(incoming))
	for i := range s.records {
		if _, ok := replaced[s.records[i].ID]; ok {
			continue
		}
		next = append(next, s.records[i])
	}
	for i := range incoming {
		next = append(next, incoming[i].Clone())
	}

	if err := s.persist(next); err != nil {
		return nil, err
	}
	s.records = next

	s.logger.Debug("store updated", "incoming", len(incoming), "total", len(next))
	return domain.CloneAll(s.records), nil
}

// SetAllToOffMarket retires every record and persists the result.
func (s *Store) SetAllToOffMarket() error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	next := domain.CloneAll(s.records)
	for i := range next {
		next[i].SetOffMarket()
	}

	if err := s.persist(next); err != nil {
		return err
	}
	s.records = next

	s.logger.Debug("store retired all records", "total", len(next))
	return nil
}

func (s *Store) initialize() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat store file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	if err := s.persist([]domain.GeocodedProperty{}); err != nil {
		return err
	}
	s.logger.Info("initialized empty store", "path", s.path)
	return nil
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	return s.load()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	var records []domain.GeocodedProperty
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode store file %s: %w", s.path, err)
	}
	if records == nil {
		records = []domain.GeocodedProperty{}
	}
	s.records = records
	s.loaded = true
	return nil
}

// persist writes records to a temporary file next to the store and renames it
// over the store, so a crash mid-write never leaves a truncated document.
func (s *Store) persist(records []domain.GeocodedProperty) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(fileMode(path)); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// fileMode keeps the permissions of an existing file and defaults new files
// to 0644. CreateTemp would otherwise leave the replacement at 0600.
func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func dedupeByID(records []domain.GeocodedProperty) []domain.GeocodedProperty {
	last := make(map[string]int, len(records))
	for i := range records {
		last[records[i].ID] = i
	}
	if len(last) == len(records) {
		return records
	}
	out := make([]domain.GeocodedProperty, 0, len(last))
	for i := range records {
		if last[records[i].ID] == i {
			out = append(out, records[i])
		}
	}
	return out
}
