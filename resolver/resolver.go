// Package resolver looks up the context a driving session is scored against:
// posted speed limits from OpenStreetMap, and the weather.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rotblauer/catdrive/session"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoAPIKey          = errors.New("no api key")
)

var (
	_ session.SpeedLimitResolver = (*Overpass)(nil)
	_ session.SpeedLimitResolver = (*CachedSpeedLimits)(nil)
	_ session.SpeedLimitResolver = StaticSpeedLimit(0)
	_ session.WeatherResolver    = (*OpenWeather)(nil)
	_ session.WeatherResolver    = (*CachedWeather)(nil)
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

func do(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	res, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
	}
	return body, nil
}
