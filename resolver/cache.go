package resolver

import (
	"context"
	"log/slog"

	"github.com/golang/geo/s2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/session"
	"github.com/rotblauer/catdrive/types/sample"
)

// CellID returns the S2 cell containing c at level.
func CellID(c sample.Coordinate, level int) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(c.Lat(), c.Lon())).Parent(level)
}

type cachedLimit struct {
	kmh float64
	ok  bool
}

// CachedSpeedLimits remembers speed limits per S2 cell.
// Limits rarely change, so entries only leave by eviction.
// Errors are not cached.
type CachedSpeedLimits struct {
	next   session.SpeedLimitResolver
	level  int
	cache  *lru.Cache[s2.CellID, cachedLimit]
	logger *slog.Logger
}

func NewCachedSpeedLimits(next session.SpeedLimitResolver, config *params.ResolverCacheConfig) (*CachedSpeedLimits, error) {
	if config == nil {
		config = params.DefaultResolverCacheConfig()
	}
	cache, err := lru.New[s2.CellID, cachedLimit](config.SpeedLimitCacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedSpeedLimits{
		next:   next,
		level:  config.SpeedLimitCellLevel,
		cache:  cache,
		logger: slog.With("resolver", "speedlimit-cache"),
	}, nil
}

func (c *CachedSpeedLimits) ResolveSpeedLimit(ctx context.Context, coord sample.Coordinate, accuracy float64) (float64, bool, error) {
	key := CellID(coord, c.level)
	if v, ok := c.cache.Get(key); ok {
		c.logger.Debug("Speed limit cache hit", "cell", key.ToToken())
		return v.kmh, v.ok, nil
	}
	kmh, ok, err := c.next.ResolveSpeedLimit(ctx, coord, accuracy)
	if err != nil {
		return 0, false, err
	}
	c.cache.Add(key, cachedLimit{kmh: kmh, ok: ok})
	return kmh, ok, nil
}

func (c *CachedSpeedLimits) Len() int {
	return c.cache.Len()
}

// CachedWeather remembers the weather per S2 cell for a while.
type CachedWeather struct {
	next   session.WeatherResolver
	level  int
	cache  *ttlcache.Cache[s2.CellID, sample.Weather]
	logger *slog.Logger
}

// NewCachedWeather starts the cache's expiry loop; Close stops it.
func NewCachedWeather(next session.WeatherResolver, config *params.ResolverCacheConfig) *CachedWeather {
	if config == nil {
		config = params.DefaultResolverCacheConfig()
	}
	c := &CachedWeather{
		next:  next,
		level: config.WeatherCellLevel,
		cache: ttlcache.New[s2.CellID, sample.Weather](
			ttlcache.WithTTL[s2.CellID, sample.Weather](config.WeatherTTL),
			ttlcache.WithDisableTouchOnHit[s2.CellID, sample.Weather](),
		),
		logger: slog.With("resolver", "weather-cache"),
	}
	go c.cache.Start()
	return c
}

func (c *CachedWeather) ResolveWeather(ctx context.Context, coord sample.Coordinate) (sample.Weather, error) {
	key := CellID(coord, c.level)
	if item := c.cache.Get(key); item != nil {
		c.logger.Debug("Weather cache hit", "cell", key.ToToken(), "expires", item.ExpiresAt())
		return item.Value(), nil
	}
	w, err := c.next.ResolveWeather(ctx, coord)
	if err != nil {
		return sample.Weather{}, err
	}
	c.cache.Set(key, w, ttlcache.DefaultTTL)
	return w, nil
}

func (c *CachedWeather) Close() {
	c.cache.Stop()
}
