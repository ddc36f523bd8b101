// Package points converts distance driven into point awards.
package points

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidThreshold = errors.New("points threshold must be a positive distance")

// Converter tracks cumulative distance and counts how many multiples
// of the threshold each delta carries it across.
type Converter struct {
	threshold  float64
	cumulative float64
}

func NewConverter(threshold float64) (*Converter, error) {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return &Converter{threshold: threshold}, nil
}

// OnDistanceDelta adds delta meters and returns the number of threshold
// multiples crossed. A single large delta may cross several.
// Non-positive and non-finite deltas are ignored, keeping the total monotonic.
func (c *Converter) OnDistanceDelta(delta float64) int64 {
	if !(delta > 0) || math.IsInf(delta, 0) {
		return 0
	}
	before := math.Floor(c.cumulative / c.threshold)
	c.cumulative += delta
	after := math.Floor(c.cumulative / c.threshold)
	return int64(after - before)
}

func (c *Converter) Cumulative() float64 { return c.cumulative }
func (c *Converter) Threshold() float64  { return c.threshold }
