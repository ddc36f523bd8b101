package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/rotblauer/catdrive/types/sample"
)

const (
	RecordPosition      = "position"
	RecordMotion        = "motion"
	RecordPositionError = "position_error"
)

var ErrUnknownRecord = errors.New("unknown record type")

// PositionError is a position failure reported by a device.
type PositionError struct {
	Message string
	Time    time.Time
}

func (e *PositionError) Error() string {
	return "position unavailable: " + e.Message
}

// Record is one reading as a device posts it, and as a recording stores it.
// Type selects which of the other fields matter.
type Record struct {
	Type string    `json:"type,omitempty"`
	Time time.Time `json:"time,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`

	Acceleration                 *sample.DeviceAcceleration `json:"acceleration,omitempty"`
	AccelerationIncludingGravity *sample.DeviceAcceleration `json:"accelerationIncludingGravity,omitempty"`

	Error string `json:"error,omitempty"`
}

func (r Record) Position() (sample.Position, error) {
	if r.Latitude == nil || r.Longitude == nil {
		return sample.Position{}, fmt.Errorf("%w: missing latitude or longitude", sample.ErrInvalidCoordinate)
	}
	c := sample.NewCoordinate(*r.Latitude, *r.Longitude)
	c.Altitude = r.Altitude
	p := sample.Position{
		Coordinate: c,
		Speed:      r.Speed,
		Accuracy:   r.Accuracy,
		Time:       r.Time,
	}
	return p, p.Validate()
}

func (r Record) Motion() (sample.MotionSample, error) {
	return sample.MotionFromDevice(r.Acceleration, r.AccelerationIncludingGravity)
}

func (r Record) PositionError() error {
	msg := r.Error
	if msg == "" {
		msg = "unknown"
	}
	return &PositionError{Message: msg, Time: r.Time}
}
