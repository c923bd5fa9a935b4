package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/pkg/types"
)

// Provider is the weather/soil data capability: one implementation per
// external data source. A provider returns whatever fields it measures;
// partial readings are valid.
type Provider interface {
	// Name returns the provider's configuration name, used for cache
	// keys, priority ordering, and attribution.
	Name() string

	// Fetch returns the provider's reading for the coordinates and time
	// range. Implementations honor context cancellation.
	Fetch(ctx context.Context, coords types.Coordinates, tr types.TimeRange) (types.ProviderReading, error)
}

// Provider configuration names.
const (
	ProviderOpenMeteo      = "open-meteo"
	ProviderVisualCrossing = "visual-crossing"
	ProviderNASAPower      = "nasa-power"
)

// NewProvider constructs the named provider from configuration.
func NewProvider(name string, cfg config.WeatherConfig) (Provider, error) {
	switch name {
	case ProviderOpenMeteo:
		return NewOpenMeteoProvider(OpenMeteoConfig{
			BaseURL: cfg.OpenMeteoURL,
			Timeout: cfg.ProviderTimeout,
		}), nil
	case ProviderVisualCrossing:
		return NewVisualCrossingProvider(VisualCrossingConfig{
			BaseURL: cfg.VisualCrossingURL,
			APIKey:  cfg.VisualCrossingAPIKey,
			Timeout: cfg.ProviderTimeout,
		}), nil
	case ProviderNASAPower:
		return NewNASAPowerProvider(NASAPowerConfig{
			BaseURL: cfg.NASAPowerURL,
			Timeout: cfg.ProviderTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported weather provider: %q", name)
	}
}

// NewProviders constructs every provider listed in the configuration,
// in the configured priority order.
func NewProviders(cfg config.WeatherConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		p, err := NewProvider(name, cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// fetchWithRetry calls fn up to attempts times with doubling backoff,
// stopping early on success or context cancellation. The last error is
// returned when every attempt fails.
func fetchWithRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() (types.ProviderReading, error)) (types.ProviderReading, error) {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return types.ProviderReading{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		reading, err := fn()
		if err == nil {
			return reading, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return types.ProviderReading{}, ctx.Err()
		}
	}
	return types.ProviderReading{}, lastErr
}

// mean averages vs, reporting false when there are no samples. Callers
// filter invalid samples before averaging.
func mean(vs []float64) (float64, bool) {
	if len(vs) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs)), true
}
