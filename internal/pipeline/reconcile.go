package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

// RecordStore is the subset of the property store the reconciler mutates.
type RecordStore interface {
	SetAllToOffMarket() error
	AddOrUpdate(records []domain.GeocodedProperty) ([]domain.GeocodedProperty, error)
	GetAll() ([]domain.GeocodedProperty, error)
}

// Sink receives the full reconciled dataset after each successful merge.
type Sink interface {
	Export(ctx context.Context, records []domain.GeocodedProperty) error
}

// Report summarizes one reconciliation cycle.
type Report struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	Fetched   int           `json:"fetched"`  // listings returned by the source
	Geocoded  int           `json:"geocoded"` // coordinates obtained from the provider
	Reused    int           `json:"reused"`   // coordinates reused from the store
	OnMarket  int           `json:"onMarket"`
	OffMarket int           `json:"offMarket"`
	Total     int           `json:"total"`
}

// Reconciler runs fetch, resolve, retire, merge, and export as one cycle.
type Reconciler struct {
	source   domain.ListingSource
	resolver *Resolver
	store    RecordStore
	sinks    []Sink
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler. Sinks run in the given order after the
// store has been updated.
func NewReconciler(source domain.ListingSource, resolver *Resolver, store RecordStore, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger, sinks ...Sink) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		source:   source,
		resolver: resolver,
		store:    store,
		sinks:    sinks,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes one cycle. Every listing in the fresh snapshot ends up stored
// on-market and every other stored record ends up off-market.
//
// Retirement and merge are two separate writes. If the merge fails after the
// retirement succeeded, all records are left off-market until the next
// successful run.
func (r *Reconciler) Run(ctx context.Context, criteria domain.SearchCriteria) (report Report, err error) {
	report.StartedAt = r.clock.Now()
	r.metrics.CycleRunning.Set(1)
	defer func() {
		r.metrics.CycleRunning.Set(0)
		report.Duration = r.clock.Since(report.StartedAt)
		r.metrics.CycleDuration.Observe(report.Duration.Seconds())
		if err != nil {
			r.metrics.CyclesTotal.WithLabelValues("error").Inc()
			return
		}
		r.metrics.CyclesTotal.WithLabelValues("success").Inc()
	}()

	if err := criteria.Validate(); err != nil {
		return report, fmt.Errorf("invalid search criteria: %w", err)
	}

	r.logger.Info("fetching listings",
		"property_types", criteria.PropertyTypes,
		"suburbs", len(criteria.Suburbs),
		"max_price", criteria.MaxPrice,
	)
	listings, err := r.source.SearchProperties(ctx, criteria)
	if err != nil {
		return report, fmt.Errorf("search properties: %w", err)
	}
	report.Fetched = len(listings)
	r.metrics.ListingsFetched.Add(float64(len(listings)))
	r.logger.Info("listings fetched", "count", len(listings))

	batch := make([]domain.GeocodedProperty, 0, len(listings))
	for _, listing := range listings {
		if listing.ID == "" {
			return report, fmt.Errorf("listing at %q: %w", listing.Address.String(), domain.ErrEmptyID)
		}

		res, err := r.resolver.Resolve(ctx, listing.Address)
		if err != nil {
			return report, fmt.Errorf("resolve listing %s: %w", listing.ID, err)
		}
		if res.Source == SourceStore {
			report.Reused++
		} else {
			report.Geocoded++
		}
		r.logger.Debug("listing resolved",
			"listing_id", listing.ID,
			"source", res.Source,
			"lat", res.Coordinate.Latitude,
			"lon", res.Coordinate.Longitude,
		)

		coord := res.Coordinate
		batch = append(batch, domain.NewGeocodedProperty(listing, &coord))
	}

	if err := r.store.SetAllToOffMarket(); err != nil {
		return report, fmt.Errorf("retire stored records: %w", err)
	}
	if _, err := r.store.AddOrUpdate(batch); err != nil {
		return report, fmt.Errorf("merge snapshot: %w", err)
	}

	records, err := r.store.GetAll()
	if err != nil {
		return report, fmt.Errorf("read merged records: %w", err)
	}
	report.Total = len(records)
	for i := range records {
		if records[i].OnMarket {
			report.OnMarket++
		}
	}
	report.OffMarket = report.Total - report.OnMarket
	r.metrics.StoredRecords.WithLabelValues("on_market").Set(float64(report.OnMarket))
	r.metrics.StoredRecords.WithLabelValues("off_market").Set(float64(report.OffMarket))

	for _, sink := range r.sinks {
		if err := sink.Export(ctx, records); err != nil {
			return report, fmt.Errorf("export records: %w", err)
		}
	}

	r.logger.Info("reconciliation complete",
		"fetched", report.Fetched,
		"geocoded", report.Geocoded,
		"reused", report.Reused,
		"on_market", report.OnMarket,
		"off_market", report.OffMarket,
		"total", report.Total,
	)
	return report, nil
}
