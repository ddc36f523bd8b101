package session

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Summary describes a session at a glance.
// Speed statistics cover only the most recent window of fixes.
type Summary struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Positions      int64 `json:"positions"`
	PositionErrors int64 `json:"positionErrors"`
	Motions        int64 `json:"motions"`

	Distance     float64 `json:"distance"`
	Points       int64   `json:"points"`
	BonusAwards  int64   `json:"bonusAwards"`
	SpeedMean    float64 `json:"speedMean"`
	SpeedMax     float64 `json:"speedMax"`
	SpeedP95     float64 `json:"speedP95"`
	SpeedSamples int     `json:"speedSamples"`

	// SpeedViolations counts fixes at or above a known limit.
	SpeedViolations int64 `json:"speedViolations"`

	SpeedScore        float64 `json:"speedScore"`
	BrakingScore      float64 `json:"brakingScore"`
	AccelerationScore float64 `json:"accelerationScore"`
}

// speedWindow is a fixed-size FIFO of the most recent speeds.
type speedWindow struct {
	buf   []float64
	write int
	count int
}

func newSpeedWindow(size int) *speedWindow {
	return &speedWindow{buf: make([]float64, size)}
}

func (w *speedWindow) add(v float64) {
	w.buf[w.write] = v
	w.write = (w.write + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

func (w *speedWindow) values() stats.Float64Data {
	out := make(stats.Float64Data, 0, w.count)
	for i := 0; i < w.count; i++ {
		out = append(out, w.buf[(w.write+len(w.buf)-w.count+i)%len(w.buf)])
	}
	return out
}

func (w *speedWindow) describe(s *Summary) {
	data := w.values()
	s.SpeedSamples = len(data)
	if len(data) == 0 {
		return
	}
	s.SpeedMean, _ = stats.Mean(data)
	s.SpeedMax, _ = stats.Max(data)
	s.SpeedP95, _ = stats.Percentile(data, 95)
}
