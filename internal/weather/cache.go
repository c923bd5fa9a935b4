package weather

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/vruksh/agroqa/pkg/types"
)

// readingCache is a TTL-bounded LRU of provider readings with per-key
// request collapsing: N concurrent misses for one key result in exactly
// one upstream fetch, while hits and different keys never block each
// other.
type readingCache struct {
	lru   *expirable.LRU[string, types.ProviderReading]
	group singleflight.Group
}

func newReadingCache(size int, ttl time.Duration) *readingCache {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &readingCache{
		lru: expirable.NewLRU[string, types.ProviderReading](size, nil, ttl),
	}
}

// GetOrFetch returns the cached reading for key, or runs fetch exactly
// once for concurrent callers and caches the result.
func (c *readingCache) GetOrFetch(ctx context.Context, key string, fetch func() (types.ProviderReading, error)) (types.ProviderReading, error) {
	if reading, ok := c.lru.Get(key); ok {
		return reading, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Double-check: another caller may have populated the entry
		// between the miss and acquiring the flight.
		if reading, ok := c.lru.Get(key); ok {
			return reading, nil
		}
		reading, err := fetch()
		if err != nil {
			return types.ProviderReading{}, err
		}
		c.lru.Add(key, reading)
		return reading, nil
	})
	if err != nil {
		return types.ProviderReading{}, err
	}

	select {
	case <-ctx.Done():
		return types.ProviderReading{}, ctx.Err()
	default:
	}
	return result.(types.ProviderReading), nil
}

// geoCache is the same shape for geocoding results, which change far
// more slowly and get a longer TTL.
type geoCache struct {
	lru   *expirable.LRU[string, types.Coordinates]
	group singleflight.Group
}

func newGeoCache(size int, ttl time.Duration) *geoCache {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &geoCache{
		lru: expirable.NewLRU[string, types.Coordinates](size, nil, ttl),
	}
}

// GetOrResolve returns the cached coordinates for key, or resolves once
// for concurrent callers and caches the result.
func (c *geoCache) GetOrResolve(ctx context.Context, key string, resolve func() (types.Coordinates, error)) (types.Coordinates, error) {
	if coords, ok := c.lru.Get(key); ok {
		return coords, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		if coords, ok := c.lru.Get(key); ok {
			return coords, nil
		}
		coords, err := resolve()
		if err != nil {
			return types.Coordinates{}, err
		}
		c.lru.Add(key, coords)
		return coords, nil
	})
	if err != nil {
		return types.Coordinates{}, err
	}

	select {
	case <-ctx.Done():
		return types.Coordinates{}, ctx.Err()
	default:
	}
	return result.(types.Coordinates), nil
}
