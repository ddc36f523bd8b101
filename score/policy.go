package score

import (
	"github.com/rotblauer/catdrive/common"
	"github.com/rotblauer/catdrive/params"
)

// Policy decides the score delta for a reading.
// Each method returns ok=false when the reading carries no signal
// and the score must be left alone.
type Policy struct {
	config params.ScoringConfig

	brakingGate      float64 // m/s
	accelerationGate float64 // m/s
}

func NewPolicy(config params.ScoringConfig) *Policy {
	return &Policy{
		config:           config,
		brakingGate:      common.KmhToMps(config.BrakingSpeedThreshold),
		accelerationGate: common.KmhToMps(config.AccelerationSpeedThreshold),
	}
}

// Speed compares speed against the known limit, both m/s.
// Driving at the limit counts as a violation.
func (p *Policy) Speed(speed, limit *float64) (delta float64, ok bool) {
	if limit == nil {
		if p.config.NoLimitIncrement == 0 {
			return 0, false
		}
		return p.config.NoLimitIncrement, true
	}
	if speed == nil {
		return 0, false
	}
	if *speed < *limit {
		return p.config.SpeedIncrement, true
	}
	return -p.config.SpeedDecrement, true
}

// Braking scores the deceleration axis, gated on speed.
func (p *Policy) Braking(speed *float64, z float64) (delta float64, ok bool) {
	if speed == nil || *speed <= p.brakingGate {
		return 0, false
	}
	if z < p.config.BrakingIntensityThreshold {
		return p.config.BrakingIncrement, true
	}
	return -p.config.BrakingDecrement, true
}

// Acceleration scores the same axis from the other side, gated on speed.
func (p *Policy) Acceleration(speed *float64, z float64) (delta float64, ok bool) {
	if speed == nil || *speed <= p.accelerationGate {
		return 0, false
	}
	if z > p.config.AccelerationIntensityThreshold {
		return p.config.AccelerationIncrement, true
	}
	return -p.config.AccelerationDecrement, true
}
