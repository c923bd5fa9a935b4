package weather

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/pkg/types"
)

// Service fuses weather/soil data from the configured providers for one
// resolved location and time range. Geocoding and provider readings are
// cached; provider calls run concurrently with per-provider timeouts,
// bounded retry, and outbound rate limiting.
type Service struct {
	geocoder  Geocoder
	providers []Provider
	priority  map[string]int

	cache    *readingCache
	geo      *geoCache
	limiters map[string]*rate.Limiter

	timeout time.Duration
	retries int
}

// NewService creates a fusion service over the given geocoder and
// providers. The provider slice order is the reconciliation priority,
// highest first.
func NewService(cfg config.WeatherConfig, geocoder Geocoder, providers []Provider) *Service {
	priority := make(map[string]int, len(providers))
	limiters := make(map[string]*rate.Limiter, len(providers))

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}

	for i, p := range providers {
		priority[p.Name()] = i
		limiters[p.Name()] = rate.NewLimiter(rate.Limit(limit), burst)
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Service{
		geocoder:  geocoder,
		providers: providers,
		priority:  priority,
		cache:     newReadingCache(cfg.CacheSize, cfg.CacheTTL),
		geo:       newGeoCache(cfg.CacheSize, cfg.GeocodeCacheTTL),
		limiters:  limiters,
		timeout:   timeout,
		retries:   retries,
	}
}

// Fetch geocodes the location candidates in order until one resolves,
// then queries every provider concurrently and reconciles the readings.
//
// Errors: ErrLocationUnresolved when every candidate fails geocoding;
// ErrWeatherUnavailable when every provider fails for the resolved
// location. A partially failed fan-out returns a valid context with
// the failed providers' fields absent.
func (s *Service) Fetch(ctx context.Context, locationCandidates []string, tr types.TimeRange) (*types.WeatherContext, error) {
	location, coords, err := s.resolveLocation(ctx, locationCandidates)
	if err != nil {
		return nil, err
	}

	readings := s.fetchAll(ctx, coords, tr)
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: all %d providers failed for %s", types.ErrWeatherUnavailable, len(s.providers), location)
	}

	wx := &types.WeatherContext{
		Location:    location,
		Coordinates: coords,
		Range:       tr,
		Readings:    readings,
		Primary:     s.reconcile(readings),
	}
	// The context's timestamp is the newest contributing reading, so a
	// fully cached fetch reproduces the previous context exactly.
	for _, r := range readings {
		if r.FetchedAt.After(wx.FetchedAt) {
			wx.FetchedAt = r.FetchedAt
		}
	}
	wx.Summary = summarize(wx)
	return wx, nil
}

// resolveLocation tries each candidate in order and returns the first
// that geocodes, consulting the geocode cache before the network.
func (s *Service) resolveLocation(ctx context.Context, candidates []string) (string, types.Coordinates, error) {
	var lastErr error
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		key := strings.ToLower(candidate)
		coords, err := s.geo.GetOrResolve(ctx, key, func() (types.Coordinates, error) {
			return s.geocoder.Geocode(ctx, candidate)
		})
		if err == nil {
			return candidate, coords, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", types.Coordinates{}, ctx.Err()
		}
		log.Printf("Warning: geocoding %q failed: %v", candidate, err)
	}
	if lastErr != nil {
		return "", types.Coordinates{}, fmt.Errorf("%w: %v", types.ErrLocationUnresolved, lastErr)
	}
	return "", types.Coordinates{}, fmt.Errorf("%w: no location candidates", types.ErrLocationUnresolved)
}

// fetchAll fans out to every provider concurrently. Each provider call
// goes through the reading cache (with per-key request collapsing), an
// outbound rate limiter, a per-call timeout, and bounded retry. A
// failing provider contributes nothing; it never fails the fan-out.
func (s *Service) fetchAll(ctx context.Context, coords types.Coordinates, tr types.TimeRange) map[string]types.ProviderReading {
	var mu sync.Mutex
	readings := make(map[string]types.ProviderReading)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.providers {
		p := p
		g.Go(func() error {
			key := cacheKey(p.Name(), coords, tr)
			reading, err := s.cache.GetOrFetch(gctx, key, func() (types.ProviderReading, error) {
				if limiter := s.limiters[p.Name()]; limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return types.ProviderReading{}, err
					}
				}
				return fetchWithRetry(gctx, s.retries+1, 200*time.Millisecond, func() (types.ProviderReading, error) {
					callCtx, cancel := context.WithTimeout(gctx, s.timeout)
					defer cancel()
					return p.Fetch(callCtx, coords, tr)
				})
			})
			if err != nil {
				log.Printf("Warning: weather provider %s failed: %v", p.Name(), err)
				return nil
			}
			mu.Lock()
			readings[p.Name()] = reading
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return readings
}

// cacheKey identifies one (location, time range, provider) fetch.
// Coordinates are rounded to 4 decimals (~11m) so nearby candidates for
// the same place share an entry.
func cacheKey(provider string, coords types.Coordinates, tr types.TimeRange) string {
	return fmt.Sprintf("%.4f,%.4f|%s|%s", coords.Lat, coords.Lon, tr.Key(), provider)
}

// reconcile builds the primary view: for each measured field, the
// highest-priority provider reporting an in-range value wins. Raw
// readings are untouched so attribution keeps every provider's data.
func (s *Service) reconcile(readings map[string]types.ProviderReading) map[types.WeatherField]types.FieldValue {
	primary := make(map[types.WeatherField]types.FieldValue)

	for _, field := range types.AllWeatherFields {
		for _, p := range s.providers {
			reading, ok := readings[p.Name()]
			if !ok || !reading.Has(field) {
				continue
			}
			v := reading.Fields[field]
			if !fieldValueSane(p.Name(), field, v) {
				continue
			}
			primary[field] = types.FieldValue{Value: v, Provider: p.Name()}
			break
		}
	}
	return primary
}

// fieldValueSane rejects readings outside each field's physical range.
// Out-of-range values are excluded from the primary view only; the raw
// per-provider reading remains available. Humidity sanity windows are
// per provider, mirroring each backend's observed failure modes.
func fieldValueSane(provider string, field types.WeatherField, v float64) bool {
	switch field {
	case types.FieldTemperature:
		return v >= -60 && v <= 60
	case types.FieldHumidity:
		if provider == ProviderVisualCrossing {
			return v >= 20 && v <= 95
		}
		return v >= 10 && v <= 100
	case types.FieldRainfall:
		return v >= 0
	case types.FieldWindSpeed:
		return v >= 0 && v <= 100
	case types.FieldSoilMoisture:
		return v >= 0 && v <= 100
	default:
		return true
	}
}

// summarize renders a one-line description of the primary view for
// prompts and logs.
func summarize(wx *types.WeatherContext) string {
	var parts []string
	if v, ok := wx.Field(types.FieldTemperature); ok {
		parts = append(parts, fmt.Sprintf("temperature %.1f°C", v.Value))
	}
	if v, ok := wx.Field(types.FieldHumidity); ok {
		parts = append(parts, fmt.Sprintf("humidity %.0f%%", v.Value))
	}
	if v, ok := wx.Field(types.FieldRainfall); ok {
		parts = append(parts, fmt.Sprintf("rainfall %.1fmm", v.Value))
	}
	if v, ok := wx.Field(types.FieldWindSpeed); ok {
		parts = append(parts, fmt.Sprintf("wind %.1fm/s", v.Value))
	}
	if v, ok := wx.Field(types.FieldSoilMoisture); ok {
		parts = append(parts, fmt.Sprintf("soil moisture %.0f%%", v.Value))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s (%s to %s): %s",
		wx.Location,
		wx.Range.Start.Format("2006-01-02"),
		wx.Range.End.Format("2006-01-02"),
		strings.Join(parts, ", "))
}
