package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vruksh/agroqa/internal/breaker"
	"github.com/vruksh/agroqa/pkg/types"
)

// NASAPowerConfig holds configuration for the NASA POWER client. The
// API needs no key.
type NASAPowerConfig struct {
	BaseURL string        // default: https://power.larc.nasa.gov
	Timeout time.Duration // default: 15s
}

// nasaMissing is the sentinel NASA POWER uses for days without data.
const nasaMissing = -999

// nasaLagDays is how far the GWETTOP series trails real time; the
// request window is shifted back by this much so the newest rows are
// actually populated.
const nasaLagDays = 1

// NASAPowerProvider implements Provider against the NASA POWER daily
// point API. It contributes exactly one field: GWETTOP topsoil
// (0-10cm) moisture, converted from a fraction to percent.
type NASAPowerProvider struct {
	cfg            NASAPowerConfig
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewNASAPowerProvider creates a NASA POWER provider.
func NewNASAPowerProvider(cfg NASAPowerConfig) *NASAPowerProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://power.larc.nasa.gov"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &NASAPowerProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: breaker.New(ProviderNASAPower),
	}
}

// Name returns the provider's configuration name.
func (p *NASAPowerProvider) Name() string { return ProviderNASAPower }

// nasaPowerResponse is the response body from the daily point endpoint.
// GWETTOP maps YYYYMMDD date keys to soil wetness fractions.
type nasaPowerResponse struct {
	Properties struct {
		Parameter struct {
			GWETTOP map[string]float64 `json:"GWETTOP"`
		} `json:"parameter"`
	} `json:"properties"`
}

// Fetch returns the average topsoil moisture over the requested range,
// shifted back by the data lag.
func (p *NASAPowerProvider) Fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error) {
	result, err := p.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return p.fetch(ctx, coords, tr)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return types.ProviderReading{}, fmt.Errorf("nasa power circuit breaker open: %w", err)
		}
		return types.ProviderReading{}, err
	}
	return result.(types.ProviderReading), nil
}

func (p *NASAPowerProvider) fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := tr.Start.AddDate(0, 0, -nasaLagDays)
	end := tr.End.AddDate(0, 0, -nasaLagDays)

	params := url.Values{}
	params.Set("parameters", "GWETTOP")
	params.Set("community", "ag")
	params.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', 4, 64))
	params.Set("start", start.Format("20060102"))
	params.Set("end", end.Format("20060102"))
	params.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, "GET",
		p.cfg.BaseURL+"/api/temporal/daily/point?"+params.Encode(), nil)
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
		return types.ProviderReading{}, fmt.Errorf("nasa power returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData nasaPowerResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return types.ProviderReading{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var samples []float64
	for _, v := range respData.Properties.Parameter.GWETTOP {
		if v > nasaMissing && v >= 0 && v <= 1 {
			samples = append(samples, v)
		}
	}

	sm, ok := mean(samples)
	if !ok {
		return types.ProviderReading{}, errors.New("nasa power returned no usable soil moisture samples")
	}

	return types.ProviderReading{
		Provider:  ProviderNASAPower,
		FetchedAt: time.Now().UTC(),
		Fields: map[types.WeatherField]float64{
			types.FieldSoilMoisture: sm * 100,
		},
	}, nil
}

// Compile-time assertion.
var _ Provider = (*NASAPowerProvider)(nil)
