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

// OpenMeteoConfig holds configuration for the Open-Meteo forecast
// client. The API needs no key, which makes it the default primary
// provider.
type OpenMeteoConfig struct {
	BaseURL string        // default: https://api.open-meteo.com
	Timeout time.Duration // default: 15s
}

// OpenMeteoProvider implements Provider against the Open-Meteo forecast
// API. It supplies every measured field: temperature, humidity,
// rainfall, wind, and topsoil moisture.
type OpenMeteoProvider struct {
	cfg            OpenMeteoConfig
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewOpenMeteoProvider creates an Open-Meteo provider.
func NewOpenMeteoProvider(cfg OpenMeteoConfig) *OpenMeteoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.open-meteo.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &OpenMeteoProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: breaker.New(ProviderOpenMeteo),
	}
}

// Name returns the provider's configuration name.
func (p *OpenMeteoProvider) Name() string { return ProviderOpenMeteo }

// openMeteoResponse is the response body from GET /v1/forecast with the
// daily and hourly variables this provider requests.
type openMeteoResponse struct {
	Daily struct {
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		HumidityMean   []float64 `json:"relative_humidity_2m_mean"`
		Precipitation  []float64 `json:"precipitation_sum"`
		WindSpeedMax   []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
	Hourly struct {
		SoilMoisture []float64 `json:"soil_moisture_0_to_7cm"`
	} `json:"hourly"`
}

// Fetch returns averaged conditions over the requested range. Daily
// values are averaged across the window; hourly topsoil moisture is
// averaged and converted from a volumetric fraction to percent.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error) {
	result, err := p.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return p.fetch(ctx, coords, tr)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return types.ProviderReading{}, fmt.Errorf("open-meteo circuit breaker open: %w", err)
		}
		return types.ProviderReading{}, err
	}
	return result.(types.ProviderReading), nil
}

func (p *OpenMeteoProvider) fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', 4, 64))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,relative_humidity_2m_mean,precipitation_sum,wind_speed_10m_max")
	params.Set("hourly", "soil_moisture_0_to_7cm")
	params.Set("wind_speed_unit", "ms")
	params.Set("timezone", "UTC")
	params.Set("start_date", tr.Start.Format("2006-01-02"))
	params.Set("end_date", tr.End.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, "GET",
		p.cfg.BaseURL+"/v1/forecast?"+params.Encode(), nil)
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
		return types.ProviderReading{}, fmt.Errorf("open-meteo returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return types.ProviderReading{}, fmt.Errorf("failed to decode response: %w", err)
	}

	reading := types.ProviderReading{
		Provider:  ProviderOpenMeteo,
		FetchedAt: time.Now().UTC(),
		Fields:    make(map[types.WeatherField]float64),
	}

	// Daily mean temperature is the midpoint of the max/min averages.
	if maxT, ok := mean(respData.Daily.TemperatureMax); ok {
		if minT, ok2 := mean(respData.Daily.TemperatureMin); ok2 {
			reading.Fields[types.FieldTemperature] = (maxT + minT) / 2
		} else {
			reading.Fields[types.FieldTemperature] = maxT
		}
	}
	if h, ok := mean(respData.Daily.HumidityMean); ok {
		reading.Fields[types.FieldHumidity] = h
	}
	if len(respData.Daily.Precipitation) > 0 {
		// Rainfall is reported as the window total, not a daily mean.
		var total float64
		for _, v := range respData.Daily.Precipitation {
			total += v
		}
		reading.Fields[types.FieldRainfall] = total
	}
	if w, ok := mean(respData.Daily.WindSpeedMax); ok {
		reading.Fields[types.FieldWindSpeed] = w
	}
	if sm, ok := mean(respData.Hourly.SoilMoisture); ok {
		// Volumetric fraction (m³/m³) to percent.
		reading.Fields[types.FieldSoilMoisture] = sm * 100
	}

	if len(reading.Fields) == 0 {
		return types.ProviderReading{}, errors.New("open-meteo returned no usable fields")
	}
	return reading, nil
}

// Compile-time assertion.
var _ Provider = (*OpenMeteoProvider)(nil)
