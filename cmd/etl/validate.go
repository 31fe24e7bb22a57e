package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/listing-etl/internal/adapter/csvreport"
	"github.com/couchcryptid/listing-etl/internal/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the store file and CSV report for consistency",
	Long: "Runs integrity checks over the JSON store and cross-checks the CSV report against it. " +
		"Does not contact the listing site or the geocoder.",
	// Overrides the root hook: no service configuration is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := loadStoreFile(flags.storageFile)
		if err != nil {
			return err
		}
		rows, err := csvreport.Read(flags.csvOutFile)
		if err != nil {
			return err
		}
		if !report(cmd.OutOrStdout(), validate(records, rows), len(records), len(rows)) {
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// loadStoreFile reads the store document without going through the store, so
// duplicates are reported rather than collapsed.
func loadStoreFile(path string) ([]domain.GeocodedProperty, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	var records []domain.GeocodedProperty
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", path, err)
	}
	return records, nil
}

func validate(records []domain.GeocodedProperty, rows []csvreport.Row) []*phase {
	return []*phase{
		validateStore(records),
		validateReport(records, rows),
	}
}

func validateStore(records []domain.GeocodedProperty) *phase {
	p := &phase{name: "Store integrity"}
	seen := make(map[string]int, len(records))
	for i := range records {
		r := records[i]
		if err := r.Validate(); err != nil {
			p.errorf("record %d: %v", i, err)
			continue
		}
		if first, ok := seen[r.ID]; ok {
			p.errorf("record %d: id %s duplicates record %d", i, r.ID, first)
			continue
		}
		seen[r.ID] = i
		if c := r.GeographicCoordinate; c != nil {
			if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
				p.errorf("record %s: coordinate (%g, %g) out of range", r.ID, c.Latitude, c.Longitude)
			}
		}
		if r.OnMarket && r.GeographicCoordinate == nil {
			p.errorf("record %s: on-market record has no coordinate", r.ID)
		}
	}
	return p
}

// validateReport checks that the CSV report reflects the store row for row.
func validateReport(records []domain.GeocodedProperty, rows []csvreport.Row) *phase {
	p := &phase{name: "Report parity (CSV vs store)"}
	if len(rows) != len(records) {
		p.errorf("row count: store has %d records, report has %d rows", len(records), len(rows))
	}

	byID := make(map[string]domain.GeocodedProperty, len(records))
	for i := range records {
		byID[records[i].ID] = records[i]
	}
	for i, row := range rows {
		r, ok := byID[row.ID]
		if !ok {
			p.errorf("row %d: id %q not found in store", i+1, row.ID)
			continue
		}
		if want := r.Address.String(); row.Address != want {
			p.errorf("row %d (%s): address %q, store has %q", i+1, row.ID, row.Address, want)
		}
		if row.OnMarket != r.OnMarket {
			p.errorf("row %d (%s): onMarket %t, store has %t", i+1, row.ID, row.OnMarket, r.OnMarket)
		}
		if (row.Latitude == nil) != (r.GeographicCoordinate == nil) {
			p.errorf("row %d (%s): coordinate presence differs from store", i+1, row.ID)
		}
	}
	return p
}

// report prints the phase summary and details. It returns true when every
// phase passed.
func report(w io.Writer, phases []*phase, records, rows int) bool {
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nRecords: %d in store, %d in report\n", records, rows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}
