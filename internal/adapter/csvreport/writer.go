// Package csvreport writes the reconciled property dataset as a CSV report.
package csvreport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/listing-etl/internal/domain"
)

// Row is one CSV line. Nil pointers are written as empty cells.
type Row struct {
	ID                string   `csv:"Id"`
	Address           string   `csv:"Address"`
	Latitude          *float64 `csv:"Latitude"`
	Longitude         *float64 `csv:"Longitude"`
	BedroomCount      *uint    `csv:"BedroomCount"`
	BathroomCount     *float64 `csv:"BathroomCount"`
	ParkingSpaceCount *uint    `csv:"ParkingSpaceCount"`
	Price             *string  `csv:"Price"`
	OnMarket          bool     `csv:"OnMarket"`
	DetailPageURL     *string  `csv:"DetailPageUrl"`
}

func toRow(p domain.GeocodedProperty) Row {
	r := Row{
		ID:                p.ID,
		Address:           p.Address.String(),
		BedroomCount:      p.BedroomCount,
		BathroomCount:     p.BathroomCount,
		ParkingSpaceCount: p.CarparkCount,
		Price:             p.Price,
		OnMarket:          p.OnMarket,
		DetailPageURL:     p.DetailPageAddress,
	}
	if p.GeographicCoordinate != nil {
		lat, lon := p.GeographicCoordinate.Latitude, p.GeographicCoordinate.Longitude
		r.Latitude, r.Longitude = &lat, &lon
	}
	return r
}

// Writer replaces the report file with the full dataset on every export.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer targeting path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Path returns the report location.
func (w *Writer) Path() string {
	return w.path
}

// Export writes records to a temporary file next to the report and renames it
// over the report, so readers never see a partial file.
func (w *Writer) Export(_ context.Context, records []domain.GeocodedProperty) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(reportMode(w.path)); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp report: %w", err)
	}
	if err := encode(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}

	w.logger.Info("csv report written", "path", w.path, "records", len(records))
	return nil
}

// reportMode keeps the permissions of an existing report and defaults new
// reports to 0644 rather than the 0600 CreateTemp uses.
func reportMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func encode(f *os.File, records []domain.GeocodedProperty) error {
	cw := csv.NewWriter(f)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(Row{}); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for i := range records {
		if err := enc.Encode(toRow(records[i])); err != nil {
			return fmt.Errorf("write report row %s: %w", records[i].ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// Read decodes a report written by Export. Empty cells decode to nil.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("report %s has no header", path)
		}
		return nil, fmt.Errorf("read report header: %w", err)
	}
	var rows []Row
	if err := dec.Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return rows, nil
}
