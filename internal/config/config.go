package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
// Per-run search criteria and file paths come from command-line flags instead.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mappify geocoding configuration.
	MappifyAPIKey        string
	MappifyEndpoint      string
	GeocodeTimeout       time.Duration
	GeocodeRateLimit     float64
	GeocodeCacheSize     int
	GeocodeMinConfidence float64

	// Domain.com.au listing search configuration.
	ListingEndpoint   string
	ScrapeMaxPages    int
	ScrapePageTimeout time.Duration
	ScrapePageDelay   time.Duration
	ScrapeUserAgent   string

	// Optional Kafka sink. Disabled when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	pageTimeout, err := parseDuration("SCRAPE_PAGE_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}
	pageDelay, err := parseNonNegativeDuration("SCRAPE_PAGE_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveFloat("GEOCODE_RATE_LIMIT", "5")
	if err != nil {
		return nil, err
	}
	minConfidence, err := parseConfidence("GEOCODE_MIN_CONFIDENCE", "0")
	if err != nil {
		return nil, err
	}
	maxPages, err := parsePositiveInt("SCRAPE_MAX_PAGES", "100")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MappifyAPIKey:        os.Getenv("MAPPIFY_API_KEY"),
		MappifyEndpoint:      envOrDefault("MAPPIFY_ENDPOINT", "https://mappify.io/api/rpc/address/geocode/"),
		GeocodeTimeout:       geocodeTimeout,
		GeocodeRateLimit:     rateLimit,
		GeocodeCacheSize:     parseCacheSize(),
		GeocodeMinConfidence: minConfidence,

		ListingEndpoint:   envOrDefault("DOMAIN_LISTING_ENDPOINT", "https://www.domain.com.au/sale/"),
		ScrapeMaxPages:    maxPages,
		ScrapePageTimeout: pageTimeout,
		ScrapePageDelay:   pageDelay,
		ScrapeUserAgent:   envOrDefault("SCRAPE_USER_AGENT", defaultUserAgent),

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "geocoded-properties"),
	}

	if cfg.MappifyAPIKey == "" {
		return nil, errors.New("MAPPIFY_API_KEY is required")
	}
	if cfg.MappifyEndpoint == "" {
		return nil, errors.New("MAPPIFY_ENDPOINT is required")
	}
	if cfg.ListingEndpoint == "" {
		return nil, errors.New("DOMAIN_LISTING_ENDPOINT is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether reconciled records should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// envOrDefault returns the value of key, or fallback when it is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseBrokers splits a comma-separated broker list, dropping blanks.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveFloat(key, fallback string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, fallback), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}

func parseConfidence(key, fallback string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, fallback), 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid %s: must be between 0 and 1", key)
	}
	return f, nil
}

func parsePositiveInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, fallback))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
