package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/listing-etl/internal/adapter/csvreport"
	"github.com/couchcryptid/listing-etl/internal/adapter/domainau"
	"github.com/couchcryptid/listing-etl/internal/adapter/kafka"
	"github.com/couchcryptid/listing-etl/internal/adapter/mappify"
	"github.com/couchcryptid/listing-etl/internal/config"
	"github.com/couchcryptid/listing-etl/internal/observability"
	"github.com/couchcryptid/listing-etl/internal/pipeline"
	"github.com/couchcryptid/listing-etl/internal/store"
)

// app holds the wired reconciliation components shared by both commands.
type app struct {
	reconciler *pipeline.Reconciler
	closers    []io.Closer
	logger     *slog.Logger
}

func newApp(cfg *config.Config, f runFlags, metrics *observability.Metrics, logger *slog.Logger) (*app, error) {
	st, err := store.New(f.storageFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := mappify.NewClient(cfg.MappifyEndpoint, cfg.MappifyAPIKey, cfg.GeocodeTimeout, metrics, logger,
		mappify.WithRateLimit(cfg.GeocodeRateLimit))
	geocoder := mappify.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)
	logger.Info("mappify geocoding configured",
		"cache_size", cfg.GeocodeCacheSize,
		"rate_limit", cfg.GeocodeRateLimit,
		"min_confidence", cfg.GeocodeMinConfidence,
	)

	scraper := domainau.NewScraper(domainau.Options{
		Endpoint:    cfg.ListingEndpoint,
		MaxPages:    cfg.ScrapeMaxPages,
		PageTimeout: cfg.ScrapePageTimeout,
		PageDelay:   cfg.ScrapePageDelay,
		UserAgent:   cfg.ScrapeUserAgent,
	}, metrics, logger)

	clock := clockwork.NewRealClock()
	a := &app{logger: logger}
	sinks := []pipeline.Sink{csvreport.NewWriter(f.csvOutFile, logger)}
	if cfg.KafkaEnabled() {
		w := kafka.NewWriter(cfg, clock, metrics, logger)
		sinks = append(sinks, w)
		a.closers = append(a.closers, w)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	resolver := pipeline.NewResolver(st, geocoder, cfg.GeocodeMinConfidence, metrics, logger)
	a.reconciler = pipeline.NewReconciler(scraper, resolver, st, clock, metrics, logger, sinks...)
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}
