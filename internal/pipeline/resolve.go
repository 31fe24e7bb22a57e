package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

// Coordinate sources reported on a Resolution.
const (
	SourceStore    = "store"
	SourceProvider = "provider"
)

// AddressLookup finds a previously stored record by exact address.
type AddressLookup interface {
	FindByAddress(addr domain.PropertyAddress) (domain.GeocodedProperty, bool, error)
}

// Resolution is the coordinate chosen for one address.
type Resolution struct {
	Coordinate domain.GeographicCoordinate
	// Confidence is the provider's score. It is zero for reused coordinates
	// and is never persisted.
	Confidence float64
	Source     string
}

// Resolver decides whether a stored coordinate can be reused for an address or
// whether the geocoding provider must be asked.
type Resolver struct {
	lookup        AddressLookup
	geocoder      domain.Geocoder
	minConfidence float64
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewResolver creates a Resolver. A minConfidence of zero disables the
// low-confidence warning.
func NewResolver(lookup AddressLookup, geocoder domain.Geocoder, minConfidence float64, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		lookup:        lookup,
		geocoder:      geocoder,
		minConfidence: minConfidence,
		metrics:       metrics,
		logger:        logger,
	}
}

// Resolve returns the stored coordinate for addr when a record with exactly the
// same address has one, and otherwise geocodes addr. Errors are not retried.
func (r *Resolver) Resolve(ctx context.Context, addr domain.PropertyAddress) (Resolution, error) {
	stored, found, err := r.lookup.FindByAddress(addr)
	if err != nil {
		return Resolution{}, fmt.Errorf("look up stored address %q: %w", addr.String(), err)
	}
	if found && stored.GeographicCoordinate != nil {
		r.metrics.CoordinateResolutions.WithLabelValues(SourceStore).Inc()
		return Resolution{Coordinate: *stored.GeographicCoordinate, Source: SourceStore}, nil
	}

	result, err := r.geocoder.Geocode(ctx, addr)
	if err != nil {
		return Resolution{}, fmt.Errorf("geocode %q: %w", addr.String(), err)
	}
	r.metrics.CoordinateResolutions.WithLabelValues(SourceProvider).Inc()

	if r.minConfidence > 0 && result.Confidence < r.minConfidence {
		r.metrics.GeocodeLowConfidence.Inc()
		r.logger.Warn("low confidence geocode",
			"address", addr.String(),
			"confidence", result.Confidence,
			"min_confidence", r.minConfidence,
		)
	}

	return Resolution{
		Coordinate: result.Coordinate(),
		Confidence: result.Confidence,
		Source:     SourceProvider,
	}, nil
}
