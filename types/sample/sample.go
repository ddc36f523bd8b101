// Package sample holds the raw readings a phone reports:
// position fixes, motion events, and the weather at a position.
package sample

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/catdrive/common"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidMotion     = errors.New("invalid motion sample")
	ErrNoAcceleration    = errors.New("no acceleration reading")
)

// Coordinate is a WGS84 position.
// Point follows the orb convention of [lng, lat].
type Coordinate struct {
	Point    orb.Point
	Altitude *float64
}

func NewCoordinate(lat, lng float64) Coordinate {
	return Coordinate{Point: orb.Point{lng, lat}}
}

func (c Coordinate) Lat() float64 { return c.Point.Lat() }
func (c Coordinate) Lon() float64 { return c.Point.Lon() }

func (c Coordinate) Validate() error {
	lat, lng := c.Lat(), c.Lon()
	if !common.IsFinite(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: lat=%.14f", ErrInvalidCoordinate, lat)
	}
	if !common.IsFinite(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lng=%.14f", ErrInvalidCoordinate, lng)
	}
	if c.Altitude != nil && !common.IsFinite(*c.Altitude) {
		return fmt.Errorf("%w: altitude=%v", ErrInvalidCoordinate, *c.Altitude)
	}
	return nil
}

type coordinateJSON struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(coordinateJSON{
		Latitude:  c.Lat(),
		Longitude: c.Lon(),
		Altitude:  c.Altitude,
	})
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var v coordinateJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Coordinate{Point: orb.Point{v.Longitude, v.Latitude}, Altitude: v.Altitude}
	return nil
}

// Position is a single fix from a position source.
// Speed (m/s) and Accuracy (m) are nil when the source did not report them.
type Position struct {
	Coordinate
	Speed    *float64
	Accuracy *float64
	Time     time.Time
}

func (p Position) Validate() error {
	return p.Coordinate.Validate()
}

// Normalize drops readings the source uses to mean "unknown".
// iOS reports -1 for an invalid speed or accuracy; some browsers report NaN.
func (p Position) Normalize() Position {
	if p.Speed != nil && (!common.IsFinite(*p.Speed) || *p.Speed < 0) {
		p.Speed = nil
	}
	if p.Accuracy != nil && (!common.IsFinite(*p.Accuracy) || *p.Accuracy < 0) {
		p.Accuracy = nil
	}
	return p
}

// MotionSample is linear acceleration in m/s^2.
// Positive Z is deceleration (braking), negative Z is acceleration.
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (m MotionSample) Validate() error {
	if !common.IsFinite(m.X) || !common.IsFinite(m.Y) || !common.IsFinite(m.Z) {
		return fmt.Errorf("%w: %+v", ErrInvalidMotion, m)
	}
	return nil
}

// DeviceAcceleration is an acceleration reading as a device motion event reports it,
// with any axis possibly null.
type DeviceAcceleration struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

func (d *DeviceAcceleration) complete() bool {
	return d != nil && d.X != nil && d.Y != nil && d.Z != nil
}

// MotionFromDevice prefers the linear (gravity-free) reading and falls back
// to the reading including gravity when the device does not report one.
func MotionFromDevice(linear, includingGravity *DeviceAcceleration) (MotionSample, error) {
	var d *DeviceAcceleration
	switch {
	case linear.complete():
		d = linear
	case includingGravity.complete():
		d = includingGravity
	default:
		return MotionSample{}, ErrNoAcceleration
	}
	m := MotionSample{X: *d.X, Y: *d.Y, Z: *d.Z}
	return m, m.Validate()
}

// Weather is ambient context. It is displayed, never scored.
type Weather struct {
	Temperature float64 `json:"temperature"` // Celsius
	Pressure    float64 `json:"pressure"`    // hPa
	Humidity    float64 `json:"humidity"`    // %
	WindSpeed   float64 `json:"windSpeed"`   // m/s
}
