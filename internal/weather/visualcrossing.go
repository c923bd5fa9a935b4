package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vruksh/agroqa/internal/breaker"
	"github.com/vruksh/agroqa/pkg/types"
)

// VisualCrossingConfig holds configuration for the Visual Crossing
// timeline client. Requires an API key.
type VisualCrossingConfig struct {
	BaseURL string        // default: https://weather.visualcrossing.com
	APIKey  string
	Timeout time.Duration // default: 15s
}

// VisualCrossingProvider implements Provider against the Visual
// Crossing timeline API. It is the humidity authority in the default
// priority chain and a wind/temperature fallback; forecasts reach out
// far enough to cover the full agricultural horizon.
type VisualCrossingProvider struct {
	cfg            VisualCrossingConfig
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewVisualCrossingProvider creates a Visual Crossing provider.
func NewVisualCrossingProvider(cfg VisualCrossingConfig) *VisualCrossingProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://weather.visualcrossing.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &VisualCrossingProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: breaker.New(ProviderVisualCrossing),
	}
}

// Name returns the provider's configuration name.
func (p *VisualCrossingProvider) Name() string { return ProviderVisualCrossing }

// visualCrossingResponse is the response body from the timeline
// endpoint. Metric unit group: temp °C, precip mm, windspeed km/h.
type visualCrossingResponse struct {
	Days []struct {
		Temp      *float64 `json:"temp"`
		Humidity  *float64 `json:"humidity"`
		Precip    *float64 `json:"precip"`
		WindSpeed *float64 `json:"windspeed"`
	} `json:"days"`
}

// Fetch returns averaged conditions over the requested range.
func (p *VisualCrossingProvider) Fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error) {
	if p.cfg.APIKey == "" {
		return types.ProviderReading{}, errors.New("visual crossing: API key not configured")
	}

	result, err := p.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return p.fetch(ctx, coords, tr)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return types.ProviderReading{}, fmt.Errorf("visual crossing circuit breaker open: %w", err)
		}
		return types.ProviderReading{}, err
	}
	return result.(types.ProviderReading), nil
}

func (p *VisualCrossingProvider) fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/VisualCrossingWebServices/rest/services/timeline/%.4f,%.4f/%s/%s",
		p.cfg.BaseURL, coords.Lat, coords.Lon,
		tr.Start.Format("2006-01-02"), tr.End.Format("2006-01-02"))

	params := url.Values{}
	params.Set("unitGroup", "metric")
	params.Set("include", "days")
	params.Set("key", p.cfg.APIKey)
	params.Set("contentType", "json")

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return types.ProviderReading{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return types.ProviderReading{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.ProviderReading{}, fmt.Errorf("visual crossing returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData visualCrossingResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return types.ProviderReading{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var temps, hums, winds []float64
	var rainTotal float64
	var rainSeen bool
	for _, d := range respData.Days {
		if d.Temp != nil {
			temps = append(temps, *d.Temp)
		}
		if d.Humidity != nil {
			hums = append(hums, *d.Humidity)
		}
		if d.Precip != nil {
			rainTotal += *d.Precip
			rainSeen = true
		}
		if d.WindSpeed != nil {
			// km/h to m/s.
			winds = append(winds, *d.WindSpeed/3.6)
		}
	}

	reading := types.ProviderReading{
		Provider:  ProviderVisualCrossing,
		FetchedAt: time.Now().UTC(),
		Fields:    make(map[types.WeatherField]float64),
	}
	if t, ok := mean(temps); ok {
		reading.Fields[types.FieldTemperature] = t
	}
	if h, ok := mean(hums); ok {
		reading.Fields[types.FieldHumidity] = h
	}
	if rainSeen {
		reading.Fields[types.FieldRainfall] = rainTotal
	}
	if w, ok := mean(winds); ok {
		reading.Fields[types.FieldWindSpeed] = w
	}

	if len(reading.Fields) == 0 {
		return types.ProviderReading{}, errors.New("visual crossing returned no usable fields")
	}
	return reading, nil
}

// Compile-time assertion.
var _ Provider = (*VisualCrossingProvider)(nil)
