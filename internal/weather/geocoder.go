// Package weather resolves location candidates to coordinates, queries
// the configured weather/soil providers concurrently, and fuses their
// readings into a single reconciled context. Provider failures degrade
// the context instead of failing the fetch; only a fully failed fan-out
// surfaces an error.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vruksh/agroqa/internal/breaker"
	"github.com/vruksh/agroqa/pkg/types"
)

// Geocoder is the geocoding capability: location text to coordinates.
// A location the backend cannot resolve returns ErrLocationUnresolved.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (types.Coordinates, error)
}

// OpenMeteoGeocoderConfig holds configuration for the Open-Meteo
// geocoding client. The API needs no key.
type OpenMeteoGeocoderConfig struct {
	BaseURL string        // default: https://geocoding-api.open-meteo.com
	Timeout time.Duration // default: 10s
}

// OpenMeteoGeocoder implements Geocoder against the Open-Meteo
// geocoding API, wrapped with circuit breaker protection.
type OpenMeteoGeocoder struct {
	cfg            OpenMeteoGeocoderConfig
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewOpenMeteoGeocoder creates a geocoding client.
func NewOpenMeteoGeocoder(cfg OpenMeteoGeocoderConfig) *OpenMeteoGeocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://geocoding-api.open-meteo.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &OpenMeteoGeocoder{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: breaker.New("geocode"),
	}
}

// geocodeResponse is the response body from GET /v1/search.
type geocodeResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// Geocode resolves a location name to coordinates. An empty result set
// from the backend maps to ErrLocationUnresolved so callers can move on
// to the next candidate.
func (g *OpenMeteoGeocoder) Geocode(ctx context.Context, location string) (types.Coordinates, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return types.Coordinates{}, fmt.Errorf("%w: empty location", types.ErrLocationUnresolved)
	}

	result, err := g.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return g.geocode(ctx, location)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return types.Coordinates{}, fmt.Errorf("geocode circuit breaker open: %w", err)
		}
		return types.Coordinates{}, err
	}
	return result.(types.Coordinates), nil
}

func (g *OpenMeteoGeocoder) geocode(ctx context.Context, location string) (types.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("name", location)
	params.Set("count", "1")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, "GET",
		g.cfg.BaseURL+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return types.Coordinates{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return types.Coordinates{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.Coordinates{}, fmt.Errorf("geocode returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return types.Coordinates{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Results) == 0 {
		return types.Coordinates{}, fmt.Errorf("%w: %q", types.ErrLocationUnresolved, location)
	}

	return types.Coordinates{
		Lat: respData.Results[0].Latitude,
		Lon: respData.Results[0].Longitude,
	}, nil
}

// Compile-time assertion.
var _ Geocoder = (*OpenMeteoGeocoder)(nil)
