package session

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/catdrive/common"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/points"
	"github.com/rotblauer/catdrive/score"
	"github.com/rotblauer/catdrive/types/sample"
)

// Tracker is the session state machine.
// It owns the session state outright and is not safe for concurrent use;
// the Engine serializes every call onto one goroutine.
// Each method leaves the state fully consistent before it returns.
type Tracker struct {
	config *params.EngineConfig
	logger *slog.Logger
	now    func() time.Time

	policy            *score.Policy
	speedScore        *score.Accumulator
	brakingScore      *score.Accumulator
	accelerationScore *score.Accumulator
	converter         *points.Converter

	state   State
	summary Summary
	speeds  *speedWindow
}

func NewTracker(config *params.EngineConfig, logger *slog.Logger, now func() time.Time) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	converter, err := points.NewConverter(config.PointsThreshold)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	started := now()
	return &Tracker{
		config:            config,
		logger:            logger,
		now:               now,
		policy:            score.NewPolicy(config.ScoringConfig),
		speedScore:        score.New(config.InitialScore),
		brakingScore:      score.New(config.InitialScore),
		accelerationScore: score.New(config.InitialScore),
		converter:         converter,
		state:             State{Started: started, UpdatedAt: started},
		summary:           Summary{Started: started},
		speeds:            newSpeedWindow(config.SummaryWindow),
	}, nil
}

// Position applies a position fix.
// It returns true for the first fix of the session, which is the caller's cue
// to look up the speed limit: the lookup needs a position.
func (t *Tracker) Position(p sample.Position) (refreshSpeedLimit bool) {
	first := t.state.LastCoordinate == nil
	if !first {
		delta := common.Distance(t.state.LastCoordinate.Point, p.Point)
		if n := t.converter.OnDistanceDelta(delta); n > 0 {
			t.award(n)
		}
		t.state.CumulativeDistance = t.converter.Cumulative()
	}

	coord := p.Coordinate
	coord.Altitude = common.CopyPtr(p.Altitude)
	t.state.LastCoordinate = &coord
	t.state.Speed = common.CopyPtr(p.Speed)
	t.state.Accuracy = common.CopyPtr(p.Accuracy)

	if delta, ok := t.policy.Speed(t.state.Speed, t.state.SpeedLimit); ok {
		t.speedScore.Apply(delta)
		if delta < 0 {
			t.summary.SpeedViolations++
		}
	}

	t.summary.Positions++
	if p.Speed != nil {
		t.speeds.add(*p.Speed)
	}
	t.touch()
	return first
}

// award adds n threshold crossings worth of points.
// The bonus is judged on the scores as they stand before this fix rescored them.
func (t *Tracker) award(n int64) {
	bonus := t.speedScore.AtLeast(t.config.BonusScoreThreshold) &&
		t.brakingScore.AtLeast(t.config.BonusScoreThreshold) &&
		t.accelerationScore.AtLeast(t.config.BonusScoreThreshold)
	awarded := n
	if bonus {
		awarded = n * t.config.BonusMultiplier
		t.summary.BonusAwards++
	}
	t.state.Points += awarded
	t.logger.Info("Points awarded", "crossings", n, "awarded", awarded, "bonus", bonus,
		"points", t.state.Points,
		"distance", humanize.SIWithDigits(t.converter.Cumulative(), 2, "m"))
}

// Motion applies a motion sample.
// Braking and acceleration are gated on speed, so they do nothing
// until a position fix has reported one.
func (t *Tracker) Motion(m sample.MotionSample) {
	t.state.LastAcceleration = &m
	if delta, ok := t.policy.Braking(t.state.Speed, m.Z); ok {
		t.brakingScore.Apply(delta)
	}
	if delta, ok := t.policy.Acceleration(t.state.Speed, m.Z); ok {
		t.accelerationScore.Apply(delta)
	}
	t.summary.Motions++
	t.touch()
}

// SpeedLimit stores a resolved speed limit given in km/h.
// nil means the resolver found none, and clears any known limit.
// A configured override wins over whatever was resolved.
func (t *Tracker) SpeedLimit(kmh *float64) {
	if t.config.SpeedLimitOverrideKmh != nil {
		kmh = t.config.SpeedLimitOverrideKmh
	}
	if kmh == nil || !(*kmh > 0) || !common.IsFinite(*kmh) {
		t.state.SpeedLimit = nil
	} else {
		t.state.SpeedLimit = common.Ptr(common.KmhToMps(*kmh))
	}
	t.touch()
}

// Weather stores ambient context. It does not touch the scores.
func (t *Tracker) Weather(w sample.Weather) {
	t.state.Weather = &w
	t.touch()
}

// PositionError records a failed fix. The session state is left as it was.
func (t *Tracker) PositionError() {
	t.summary.PositionErrors++
}

// Coordinate returns the last known coordinate and accuracy, if any.
func (t *Tracker) Coordinate() (c sample.Coordinate, accuracy float64, ok bool) {
	if t.state.LastCoordinate == nil {
		return sample.Coordinate{}, 0, false
	}
	if t.state.Accuracy != nil {
		accuracy = *t.state.Accuracy
	}
	c = *t.state.LastCoordinate
	c.Altitude = common.CopyPtr(c.Altitude)
	return c, accuracy, true
}

func (t *Tracker) touch() {
	t.state.Seq++
	t.state.UpdatedAt = t.now()
}

func (t *Tracker) Snapshot() State {
	s := t.state.Copy()
	s.SpeedScore = t.speedScore.Value()
	s.BrakingScore = t.brakingScore.Value()
	s.AccelerationScore = t.accelerationScore.Value()
	return s
}

func (t *Tracker) Summary() Summary {
	s := t.summary
	s.Duration = t.state.UpdatedAt.Sub(s.Started)
	s.Distance = t.converter.Cumulative()
	s.Points = t.state.Points
	s.SpeedScore = t.speedScore.Value()
	s.BrakingScore = t.brakingScore.Value()
	s.AccelerationScore = t.accelerationScore.Value()
	t.speeds.describe(&s)
	return s
}
