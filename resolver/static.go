package resolver

import (
	"context"

	"github.com/rotblauer/catdrive/types/sample"
)

// StaticSpeedLimit is the same limit (km/h) everywhere. Debug and demo use.
type StaticSpeedLimit float64

func (s StaticSpeedLimit) ResolveSpeedLimit(context.Context, sample.Coordinate, float64) (float64, bool, error) {
	return float64(s), s > 0, nil
}
