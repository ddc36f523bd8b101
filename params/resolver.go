package params

import (
	"os"
	"time"
)

type OverpassConfig struct {
	// Endpoint is an Overpass API interpreter URL.
	Endpoint string
	Timeout  time.Duration
	// MinRadius and MaxRadius bound the search radius (m) around a fix.
	// The fix accuracy is used as the radius when it falls between them.
	MinRadius float64
	MaxRadius float64
}

func DefaultOverpassConfig() *OverpassConfig {
	return &OverpassConfig{
		Endpoint:  "https://overpass-api.de/api/interpreter",
		Timeout:   10 * time.Second,
		MinRadius: 10,
		MaxRadius: 50,
	}
}

type OpenWeatherConfig struct {
	Endpoint string
	// APIKey is required. No key, no weather.
	APIKey  string
	Timeout time.Duration
}

func DefaultOpenWeatherConfig() *OpenWeatherConfig {
	return &OpenWeatherConfig{
		Endpoint: "https://api.openweathermap.org/data/2.5/weather",
		APIKey:   os.Getenv("OPENWEATHER_API_KEY"),
		Timeout:  10 * time.Second,
	}
}

type ResolverCacheConfig struct {
	// SpeedLimitCellLevel is the S2 level speed limits are cached at.
	// Level 16 cells are ~150m across, about a block.
	SpeedLimitCellLevel int
	SpeedLimitCacheSize int

	// WeatherCellLevel is the S2 level weather is cached at.
	// Level 10 cells are ~10km across.
	WeatherCellLevel int
	WeatherTTL       time.Duration
}

func DefaultResolverCacheConfig() *ResolverCacheConfig {
	return &ResolverCacheConfig{
		SpeedLimitCellLevel: 16,
		SpeedLimitCacheSize: 10_000,
		WeatherCellLevel:    10,
		WeatherTTL:          10 * time.Minute,
	}
}
