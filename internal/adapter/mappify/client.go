package mappify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

var (
	// ErrMissingStreetAddress is returned when an address has no street component.
	ErrMissingStreetAddress = errors.New("mappify: street address is required")
	// ErrNoMatch is returned when Mappify answers without a result.
	ErrNoMatch = errors.New("mappify: no geocode match")
)

// Client implements domain.Geocoder using the Mappify address geocoding API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outgoing requests at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Mappify geocoding client.
func NewClient(endpoint, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode converts an address to a coordinate and confidence score.
func (c *Client) Geocode(ctx context.Context, addr domain.PropertyAddress) (domain.GeocodingResult, error) {
	if addr.StreetAddress == "" {
		return domain.GeocodingResult{}, ErrMissingStreetAddress
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.GeocodingResult{}, fmt.Errorf("geocode rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(request{
		StreetAddress: addr.StreetAddress,
		Suburb:        addr.Suburb,
		State:         addr.State,
		PostCode:      addr.PostCode,
		APIKey:        c.apiKey,
	})
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	result, err := c.doRequest(ctx, body)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrNoMatch):
		c.metrics.GeocodeRequests.WithLabelValues("no_match").Inc()
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
		c.logger.Debug("geocoded address",
			"address", addr.String(),
			"lat", result.Latitude,
			"lon", result.Longitude,
			"confidence", result.Confidence,
		)
	}
	return result, err
}

func (c *Client) doRequest(ctx context.Context, body []byte) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.GeocodingResult{}, fmt.Errorf("mappify API error: status %d: %s", resp.StatusCode, msg)
	}

	var mappifyResp response
	if err := json.NewDecoder(resp.Body).Decode(&mappifyResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if mappifyResp.Result == nil || mappifyResp.Result.Location == nil {
		return domain.GeocodingResult{}, ErrNoMatch
	}

	return domain.GeocodingResult{
		Latitude:   mappifyResp.Result.Location.Lat,
		Longitude:  mappifyResp.Result.Location.Lon,
		Confidence: mappifyResp.Confidence,
	}, nil
}

// Mappify API payloads.
// See https://mappify.io/docs/#api-Geocoding-PostApiRpcAddressGeocode

type request struct {
	StreetAddress string `json:"streetAddress"`
	Suburb        string `json:"suburb,omitempty"`
	State         string `json:"state,omitempty"`
	PostCode      string `json:"postCode,omitempty"`
	APIKey        string `json:"apiKey"`
}

type response struct {
	Type       string  `json:"type"`
	Result     *result `json:"result"`
	Confidence float64 `json:"confidence"`
}

type result struct {
	BuildingName  string    `json:"buildingName,omitempty"`
	NumberFirst   *int      `json:"numberFirst,omitempty"`
	NumberLast    *int      `json:"numberLast,omitempty"`
	StreetName    string    `json:"streetName,omitempty"`
	StreetType    string    `json:"streetType,omitempty"`
	Suburb        string    `json:"suburb,omitempty"`
	State         string    `json:"state,omitempty"`
	PostCode      string    `json:"postCode,omitempty"`
	StreetAddress string    `json:"streetAddress,omitempty"`
	Location      *location `json:"location"`
}

type location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
