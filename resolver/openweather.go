package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/types/sample"
	"github.com/tidwall/gjson"
)

// OpenWeather resolves current conditions from the OpenWeatherMap API.
type OpenWeather struct {
	config *params.OpenWeatherConfig
	client *http.Client
	logger *slog.Logger
}

func NewOpenWeather(config *params.OpenWeatherConfig) (*OpenWeather, error) {
	if config == nil {
		config = params.DefaultOpenWeatherConfig()
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("openweather: %w", ErrNoAPIKey)
	}
	return &OpenWeather{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.With("resolver", "openweather"),
	}, nil
}

func (o *OpenWeather) ResolveWeather(ctx context.Context, c sample.Coordinate) (sample.Weather, error) {
	u, err := url.Parse(o.config.Endpoint)
	if err != nil {
		return sample.Weather{}, err
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(c.Lat(), 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(c.Lon(), 'f', 6, 64))
	q.Set("units", "metric")
	q.Set("appid", o.config.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return sample.Weather{}, err
	}
	body, err := do(ctx, o.client, req)
	if err != nil {
		return sample.Weather{}, fmt.Errorf("openweather: %w", err)
	}
	w, err := ParseWeather(body)
	if err != nil {
		return sample.Weather{}, fmt.Errorf("openweather: %w", err)
	}
	o.logger.Debug("Resolved weather", "lat", c.Lat(), "lng", c.Lon(),
		"temp", w.Temperature, "wind", w.WindSpeed)
	return w, nil
}

// ParseWeather reads a current weather response body.
// Temperature is required; the rest default to zero when missing.
func ParseWeather(body []byte) (sample.Weather, error) {
	if !gjson.ValidBytes(body) {
		return sample.Weather{}, ErrMalformedResponse
	}
	fields := gjson.GetManyBytes(body, "main.temp", "main.pressure", "main.humidity", "wind.speed")
	if !fields[0].Exists() {
		return sample.Weather{}, fmt.Errorf("%w: no main.temp", ErrMalformedResponse)
	}
	return sample.Weather{
		Temperature: fields[0].Float(),
		Pressure:    fields[1].Float(),
		Humidity:    fields[2].Float(),
		WindSpeed:   fields[3].Float(),
	}, nil
}
