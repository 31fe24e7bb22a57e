package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "listing_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation pipeline.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec // labels: outcome={success,error}
	CycleDuration prometheus.Histogram
	CycleRunning  prometheus.Gauge

	// Listing source metrics.
	ListingsFetched prometheus.Counter
	PagesScraped    prometheus.Counter

	// Geocoding metrics.
	CoordinateResolutions *prometheus.CounterVec   // labels: source={store,provider}
	GeocodeRequests       *prometheus.CounterVec   // labels: outcome={success,error,no_match}
	GeocodeCache          *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration    prometheus.Histogram
	GeocodeLowConfidence  prometheus.Counter

	// Store and sink metrics.
	StoredRecords    *prometheus.GaugeVec // labels: status={on_market,off_market}
	RecordsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.CycleRunning,
		m.ListingsFetched,
		m.PagesScraped,
		m.CoordinateResolutions,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeLowConfidence,
		m.StoredRecords,
		m.RecordsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_cycles_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_cycle_duration_seconds",
			Help:      "Duration of a complete fetch-resolve-merge-persist cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_cycle_running",
			Help:      "1 while a reconciliation cycle is in progress.",
		}),
		ListingsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_fetched_total",
			Help:      "Total listings returned by the listing source.",
		}),
		PagesScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_scraped_total",
			Help:      "Total search result pages scraped.",
		}),
		CoordinateResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinate_resolutions_total",
			Help:      "Coordinates resolved per listing, by source.",
		}, []string{"source"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mappify API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeLowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_low_confidence_total",
			Help:      "Geocodes stored despite a confidence below the configured minimum.",
		}),
		StoredRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_records",
			Help:      "Records in the store after the last cycle, by market status.",
		}, []string{"status"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published to the Kafka sink topic.",
		}),
	}
}
