package params

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

// ScoringConfig holds the increments, decrements and thresholds of the
// three progress scores.
// Increments are small and decrements large, so scores climb slowly and fall fast.
type ScoringConfig struct {
	// InitialScore is where every progress score starts a session.
	InitialScore float64

	SpeedIncrement float64
	SpeedDecrement float64

	// NoLimitIncrement is applied to the speed score on each position fix
	// while no speed limit is known. Zero leaves the score unchanged.
	NoLimitIncrement float64

	// BrakingSpeedThreshold gates braking evaluation, in km/h.
	// Below it there is no useful signal.
	BrakingSpeedThreshold float64
	// BrakingIntensityThreshold is compared against the deceleration (z) axis in m/s^2.
	// Readings below it are gentle; at or above it is harsh.
	BrakingIntensityThreshold float64
	BrakingIncrement          float64
	BrakingDecrement          float64

	// AccelerationSpeedThreshold gates acceleration evaluation, in km/h.
	AccelerationSpeedThreshold float64
	// AccelerationIntensityThreshold is compared against the same z axis.
	// Readings above it are gentle; at or below it is harsh.
	AccelerationIntensityThreshold float64
	AccelerationIncrement          float64
	AccelerationDecrement          float64
}

type PointsConfig struct {
	// PointsThreshold is the distance in meters that earns a point.
	PointsThreshold float64
	// BonusScoreThreshold is the score all three progress scores must meet
	// at award time for the award to be multiplied.
	BonusScoreThreshold float64
	BonusMultiplier     int64
}

type EngineConfig struct {
	ScoringConfig
	PointsConfig

	// SpeedLimitOverrideKmh replaces every resolved speed limit when set.
	// Debug and demo use only.
	SpeedLimitOverrideKmh *float64

	SpeedLimitInterval time.Duration
	WeatherInterval    time.Duration
	// LookupTimeout bounds a single speed limit or weather lookup.
	LookupTimeout time.Duration

	// SummaryWindow is the number of recent speeds kept for the session summary.
	SummaryWindow int
}

// VariantA is the canonical configuration.
func VariantA() *EngineConfig {
	return &EngineConfig{
		ScoringConfig: ScoringConfig{
			InitialScore: 50,

			SpeedIncrement:   1,
			SpeedDecrement:   10,
			NoLimitIncrement: 0,

			BrakingSpeedThreshold:     5,
			BrakingIntensityThreshold: 5,
			BrakingIncrement:          0.1,
			BrakingDecrement:          1,

			AccelerationSpeedThreshold:     5,
			AccelerationIntensityThreshold: -2,
			AccelerationIncrement:          0.1,
			AccelerationDecrement:          1,
		},
		PointsConfig: PointsConfig{
			PointsThreshold:     100,
			BonusScoreThreshold: 80,
			BonusMultiplier:     2,
		},
		SpeedLimitInterval: 30 * time.Second,
		WeatherInterval:    60 * time.Second,
		LookupTimeout:      10 * time.Second,
		SummaryWindow:      600,
	}
}

// VariantB is the progress-bar flavor: points every 50m,
// a gentler speed penalty, and a slow climb while no limit is known.
func VariantB() *EngineConfig {
	c := VariantA()
	c.PointsThreshold = 50
	c.SpeedDecrement = 2
	c.NoLimitIncrement = 0.5
	return c
}

func DefaultEngineConfig() *EngineConfig {
	return VariantA()
}

// Variant returns a preset by name ("a" or "b").
func Variant(name string) (*EngineConfig, error) {
	switch name {
	case "a", "A", "":
		return VariantA(), nil
	case "b", "B":
		return VariantB(), nil
	}
	return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, name)
}

func (c *EngineConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if !(c.PointsThreshold > 0) || math.IsInf(c.PointsThreshold, 0) {
		return fmt.Errorf("%w: points threshold must be positive, got %v", ErrInvalidConfig, c.PointsThreshold)
	}
	if c.InitialScore < 0 || c.InitialScore > 100 || math.IsNaN(c.InitialScore) {
		return fmt.Errorf("%w: initial score %v outside [0,100]", ErrInvalidConfig, c.InitialScore)
	}
	for name, v := range map[string]float64{
		"bonus threshold":                  c.BonusScoreThreshold,
		"no limit increment":               c.NoLimitIncrement,
		"braking speed threshold":          c.BrakingSpeedThreshold,
		"braking intensity threshold":      c.BrakingIntensityThreshold,
		"acceleration speed threshold":     c.AccelerationSpeedThreshold,
		"acceleration intensity threshold": c.AccelerationIntensityThreshold,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.BonusMultiplier < 1 {
		return fmt.Errorf("%w: bonus multiplier must be >= 1, got %d", ErrInvalidConfig, c.BonusMultiplier)
	}
	for name, v := range map[string]float64{
		"speed increment":        c.SpeedIncrement,
		"speed decrement":        c.SpeedDecrement,
		"braking increment":      c.BrakingIncrement,
		"braking decrement":      c.BrakingDecrement,
		"acceleration increment": c.AccelerationIncrement,
		"acceleration decrement": c.AccelerationDecrement,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite non-negative magnitude, got %v", ErrInvalidConfig, name, v)
		}
	}
	if o := c.SpeedLimitOverrideKmh; o != nil && (!(*o > 0) || math.IsInf(*o, 0)) {
		return fmt.Errorf("%w: speed limit override must be positive", ErrInvalidConfig)
	}
	if c.SpeedLimitInterval <= 0 || c.WeatherInterval <= 0 {
		return fmt.Errorf("%w: refresh intervals must be positive", ErrInvalidConfig)
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("%w: lookup timeout must be positive", ErrInvalidConfig)
	}
	if c.SummaryWindow < 1 {
		return fmt.Errorf("%w: summary window must be >= 1", ErrInvalidConfig)
	}
	return nil
}
