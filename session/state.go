package session

import (
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catdrive/common"
	"github.com/rotblauer/catdrive/types/sample"
)

// State is a read-only view of a driving session.
// The engine only ever hands out copies; mutating one changes nothing.
type State struct {
	Started   time.Time `json:"started"`
	UpdatedAt time.Time `json:"updatedAt"`
	// Seq counts the mutating events applied this session.
	Seq uint64 `json:"seq"`

	LastCoordinate   *sample.Coordinate   `json:"lastCoordinate"`
	LastAcceleration *sample.MotionSample `json:"lastAcceleration"`

	Speed      *float64 `json:"speed"`      // m/s
	Accuracy   *float64 `json:"accuracy"`   // m
	SpeedLimit *float64 `json:"speedLimit"` // m/s

	CumulativeDistance float64 `json:"cumulativeDistance"` // m
	Points             int64   `json:"points"`

	SpeedScore        float64 `json:"speedScore"`
	BrakingScore      float64 `json:"brakingScore"`
	AccelerationScore float64 `json:"accelerationScore"`

	Weather *sample.Weather `json:"weather"`
}

// Copy returns a deep copy.
func (s State) Copy() State {
	cp := s
	if s.LastCoordinate != nil {
		c := *s.LastCoordinate
		c.Altitude = common.CopyPtr(c.Altitude)
		cp.LastCoordinate = &c
	}
	cp.LastAcceleration = common.CopyPtr(s.LastAcceleration)
	cp.Speed = common.CopyPtr(s.Speed)
	cp.Accuracy = common.CopyPtr(s.Accuracy)
	cp.SpeedLimit = common.CopyPtr(s.SpeedLimit)
	cp.Weather = common.CopyPtr(s.Weather)
	return cp
}

// Feature renders the state as a GeoJSON point feature at the last coordinate.
// It returns nil before the first fix.
func (s State) Feature() *geojson.Feature {
	if s.LastCoordinate == nil {
		return nil
	}
	f := geojson.NewFeature(s.LastCoordinate.Point)
	f.Properties["Time"] = s.UpdatedAt.Format(time.RFC3339)
	f.Properties["Distance"] = s.CumulativeDistance
	f.Properties["Points"] = s.Points
	f.Properties["SpeedScore"] = s.SpeedScore
	f.Properties["BrakingScore"] = s.BrakingScore
	f.Properties["AccelerationScore"] = s.AccelerationScore
	if s.LastCoordinate.Altitude != nil {
		f.Properties["Elevation"] = *s.LastCoordinate.Altitude
	}
	if s.Speed != nil {
		f.Properties["Speed"] = *s.Speed
	}
	if s.Accuracy != nil {
		f.Properties["Accuracy"] = *s.Accuracy
	}
	if s.SpeedLimit != nil {
		f.Properties["SpeedLimit"] = *s.SpeedLimit
	}
	if s.Weather != nil {
		f.Properties["AmbientTemp"] = s.Weather.Temperature
		f.Properties["Pressure"] = s.Weather.Pressure
		f.Properties["Humidity"] = s.Weather.Humidity
		f.Properties["WindSpeed"] = s.Weather.WindSpeed
	}
	return f
}
