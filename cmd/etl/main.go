package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/listing-etl/internal/config"
	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

var (
	cfg    *config.Config
	logger = slog.Default()
	flags  = runFlags{}
)

var rootCmd = &cobra.Command{
	Use:   "listing-etl",
	Short: "Reconcile property listings into a geocoded dataset",
	Long: "Fetches the current Domain.com.au listings matching the search criteria, geocodes new addresses " +
		"with Mappify, merges them into the local store (retiring listings that disappeared) and writes a CSV report.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := flags.criteria()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, flags, observability.NewMetrics(), logger)
		if err != nil {
			return err
		}
		defer a.close()

		_, err = a.reconciler.Run(cmd.Context(), criteria)
		return err
	},
}

func init() {
	flags.register(rootCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("listing-etl failed", "error", err)
		os.Exit(1)
	}
}

// runFlags carries the per-run search criteria and file locations.
type runFlags struct {
	propertyTypes []string
	suburbs       []string
	minBedrooms   uint
	minBathrooms  uint
	minCarparks   uint
	maxPrice      uint64
	storageFile   string
	csvOutFile    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringSliceVar(&f.propertyTypes, "property-types", []string{string(domain.House), string(domain.Townhouse)},
		"property types to search (house, apartment, townhouse, land)")
	pf.StringSliceVar(&f.suburbs, "suburbs", nil, "suburbs to search (default all supported suburbs)")
	pf.UintVar(&f.minBedrooms, "minimum-bedrooms", 0, "minimum number of bedrooms")
	pf.UintVar(&f.minBathrooms, "minimum-bathrooms", 0, "minimum number of bathrooms")
	pf.UintVar(&f.minCarparks, "minimum-carparks", 0, "minimum number of car parks")
	pf.Uint64Var(&f.maxPrice, "maximum-price", domain.DefaultMaxPrice, "maximum listing price")
	pf.StringVar(&f.storageFile, "storage-file", "./GeocodedPropertiesStore.json", "path of the JSON property store")
	pf.StringVar(&f.csvOutFile, "csv-out-file", "./GeocodedPropertiesOutput.csv", "path of the CSV report")
}

// criteria turns the flag values into validated search criteria.
func (f *runFlags) criteria() (domain.SearchCriteria, error) {
	c := domain.SearchCriteria{
		MinBedrooms:  f.minBedrooms,
		MinBathrooms: f.minBathrooms,
		MinCarparks:  f.minCarparks,
		MaxPrice:     f.maxPrice,
	}
	for _, s := range f.propertyTypes {
		t, err := domain.ParsePropertyType(s)
		if err != nil {
			return domain.SearchCriteria{}, fmt.Errorf("--property-types: %w", err)
		}
		c.PropertyTypes = append(c.PropertyTypes, t)
	}
	if len(f.suburbs) == 0 {
		c.Suburbs = append(c.Suburbs, domain.AllSuburbs...)
	}
	for _, s := range f.suburbs {
		sub, err := domain.ParseSuburb(s)
		if err != nil {
			return domain.SearchCriteria{}, fmt.Errorf("--suburbs: %w", err)
		}
		c.Suburbs = append(c.Suburbs, sub)
	}
	if err := c.Validate(); err != nil {
		return domain.SearchCriteria{}, err
	}
	return c, nil
}
