// Package session runs a driving session: it fuses position fixes, motion
// samples and context lookups into a bounded, incrementally updated score.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/event"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catdrive/metrics"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/types/sample"
)

var ErrNotRunning = errors.New("engine not running")

// SpeedLimitResolver looks up the posted speed limit at a coordinate, in km/h.
// ok=false means no limit is known there, which is not an error.
type SpeedLimitResolver interface {
	ResolveSpeedLimit(ctx context.Context, c sample.Coordinate, accuracy float64) (kmh float64, ok bool, err error)
}

// WeatherResolver looks up the current weather at a coordinate.
type WeatherResolver interface {
	ResolveWeather(ctx context.Context, c sample.Coordinate) (sample.Weather, error)
}

const (
	kindPosition      = "position"
	kindPositionError = "position_error"
	kindMotion        = "motion"
	kindSpeedLimit    = "speed_limit"
	kindWeather       = "weather"
	kindLookupError   = "lookup_error"
)

// Engine is the single owner of a session's state.
// Every entry point, timer tick and lookup completion becomes an event on one
// inbox, and one goroutine applies them in order, each to completion.
// Entry points block until their event has been applied.
type Engine struct {
	config      *params.EngineConfig
	logger      *slog.Logger
	now         func() time.Time
	speedLimits SpeedLimitResolver
	weather     WeatherResolver
	registry    gethmetrics.Registry

	feed event.FeedOf[State]

	mu  sync.Mutex
	run *run

	last    atomic.Pointer[State]
	summary atomic.Pointer[Summary]
}

// run is one session: started by Start, torn down by Stop.
type run struct {
	tracker *Tracker
	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan envelope
	done    chan struct{}
	lookups sync.WaitGroup
}

type envelope struct {
	kind string
	// apply runs on the loop goroutine and reports whether the state changed.
	apply func(r *run) (mutated bool)
	done  chan struct{}
}

type Option func(e *Engine)

func WithSpeedLimitResolver(r SpeedLimitResolver) Option {
	return func(e *Engine) { e.speedLimits = r }
}

func WithWeatherResolver(r WeatherResolver) Option {
	return func(e *Engine) { e.weather = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetricsRegistry(reg gethmetrics.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

func NewEngine(config *params.EngineConfig, opts ...Option) (*Engine, error) {
	if config == nil {
		config = params.DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config: config,
		logger: slog.With("d", "engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = metrics.NewRegistry()
	}

	// Publish a pristine state so Snapshot has something to say before Start.
	t, err := NewTracker(config, e.logger, e.now)
	if err != nil {
		return nil, err
	}
	initial := t.Snapshot()
	e.last.Store(&initial)
	return e, nil
}

// Start begins a new session. Starting a running engine does nothing.
// The session ends on Stop, or when ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		select {
		case <-e.run.done:
			// ctx ended the last session without a Stop. Start over.
			e.teardown(e.run)
		default:
			return nil
		}
	}
	tracker, err := NewTracker(e.config, e.logger, e.now)
	if err != nil {
		return err
	}
	rctx, cancel := context.WithCancel(ctx)
	r := &run{
		tracker: tracker,
		ctx:     rctx,
		cancel:  cancel,
		inbox:   make(chan envelope),
		done:    make(chan struct{}),
	}
	e.run = r
	e.logger.Info("Session started",
		"points.threshold", e.config.PointsThreshold,
		"speedlimit.interval", e.config.SpeedLimitInterval,
		"weather.interval", e.config.WeatherInterval)
	go e.loop(r)
	return nil
}

// Stop ends the session, tears down its timers, and waits for in-flight
// lookups to give up. Stopping a stopped engine does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	r := e.run
	e.run = nil
	e.mu.Unlock()
	if r == nil {
		return
	}
	e.teardown(r)
}

// teardown ends r and keeps its summary.
func (e *Engine) teardown(r *run) {
	r.cancel()
	<-r.done
	r.lookups.Wait()

	sum := r.tracker.Summary()
	e.summary.Store(&sum)
	e.logger.Info("Session stopped",
		"duration", sum.Duration.Round(time.Second),
		"distance", humanize.SIWithDigits(sum.Distance, 2, "m"),
		"points", humanize.Comma(sum.Points),
		"positions", humanize.Comma(sum.Positions),
		"motions", humanize.Comma(sum.Motions),
		"speed.mean", sum.SpeedMean,
		"speed.max", sum.SpeedMax)
}

// Running reports whether a session is live.
func (e *Engine) Running() bool {
	r := e.current()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func (e *Engine) current() *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run
}

func (e *Engine) loop(r *run) {
	defer close(r.done)

	speedLimitTicker := time.NewTicker(e.config.SpeedLimitInterval)
	defer speedLimitTicker.Stop()
	weatherTicker := time.NewTicker(e.config.WeatherInterval)
	defer weatherTicker.Stop()

	e.publish(r)
	for {
		select {
		case <-r.ctx.Done():
			return
		case env := <-r.inbox:
			e.mark(env.kind)
			if env.apply(r) {
				e.publish(r)
			}
			close(env.done)
		case <-speedLimitTicker.C:
			e.refreshSpeedLimit(r)
		case <-weatherTicker.C:
			e.refreshWeather(r)
		}
	}
}

func (e *Engine) submit(ctx context.Context, r *run, kind string, apply func(r *run) bool) error {
	if r == nil {
		return ErrNotRunning
	}
	env := envelope{kind: kind, apply: apply, done: make(chan struct{})}
	select {
	case r.inbox <- env:
	case <-r.ctx.Done():
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	<-env.done
	return nil
}

func (e *Engine) publish(r *run) {
	snap := r.tracker.Snapshot()
	e.last.Store(&snap)
	e.feed.Send(snap.Copy())
}

func (e *Engine) mark(kind string) {
	if kind == "" {
		return
	}
	gethmetrics.GetOrRegisterMeter(metrics.EventMeterPrefix+kind, e.registry).Mark(1)
}

// OnPositionSample applies a position fix.
// The first fix of a session also kicks off a speed limit lookup.
func (e *Engine) OnPositionSample(ctx context.Context, p sample.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.Normalize()
	return e.submit(ctx, e.current(), kindPosition, func(r *run) bool {
		if r.tracker.Position(p) {
			e.refreshSpeedLimit(r)
		}
		return true
	})
}

// OnPositionError reports a failed fix. The session state is kept as it was:
// stale but valid beats reset.
func (e *Engine) OnPositionError(ctx context.Context, cause error) error {
	e.logger.Warn("Failed to retrieve position", "error", cause)
	return e.submit(ctx, e.current(), kindPositionError, func(r *run) bool {
		r.tracker.PositionError()
		return false
	})
}

func (e *Engine) OnMotionSample(ctx context.Context, m sample.MotionSample) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return e.submit(ctx, e.current(), kindMotion, func(r *run) bool {
		r.tracker.Motion(m)
		return true
	})
}

// OnSpeedLimitResolved stores a speed limit in km/h; nil clears it.
func (e *Engine) OnSpeedLimitResolved(ctx context.Context, kmh *float64) error {
	return e.resolvedSpeedLimit(ctx, e.current(), kmh)
}

func (e *Engine) resolvedSpeedLimit(ctx context.Context, r *run, kmh *float64) error {
	var limit *float64
	if kmh != nil {
		v := *kmh
		limit = &v
	}
	return e.submit(ctx, r, kindSpeedLimit, func(r *run) bool {
		r.tracker.SpeedLimit(limit)
		return true
	})
}

func (e *Engine) OnWeatherResolved(ctx context.Context, w sample.Weather) error {
	return e.resolvedWeather(ctx, e.current(), w)
}

func (e *Engine) resolvedWeather(ctx context.Context, r *run, w sample.Weather) error {
	return e.submit(ctx, r, kindWeather, func(r *run) bool {
		r.tracker.Weather(w)
		return true
	})
}

// refreshSpeedLimit fires a lookup and forgets about it.
// Its result comes back through the inbox like any other event.
// There is no generation check: a slow lookup that lands after a newer one
// overwrites it.
func (e *Engine) refreshSpeedLimit(r *run) {
	if e.speedLimits == nil {
		return
	}
	coord, accuracy, ok := r.tracker.Coordinate()
	if !ok {
		e.logger.Debug("Skipping speed limit refresh, no position yet")
		return
	}
	r.lookups.Add(1)
	go func() {
		defer r.lookups.Done()
		ctx, cancel := context.WithTimeout(r.ctx, e.config.LookupTimeout)
		defer cancel()
		kmh, found, err := e.speedLimits.ResolveSpeedLimit(ctx, coord, accuracy)
		if err != nil {
			e.lookupFailed(kindSpeedLimit, err)
			return
		}
		var limit *float64
		if found {
			limit = &kmh
		}
		if err := e.resolvedSpeedLimit(r.ctx, r, limit); err != nil {
			e.logger.Debug("Dropped speed limit", "error", err)
		}
	}()
}

func (e *Engine) refreshWeather(r *run) {
	if e.weather == nil {
		return
	}
	coord, _, ok := r.tracker.Coordinate()
	if !ok {
		e.logger.Debug("Skipping weather refresh, no position yet")
		return
	}
	r.lookups.Add(1)
	go func() {
		defer r.lookups.Done()
		ctx, cancel := context.WithTimeout(r.ctx, e.config.LookupTimeout)
		defer cancel()
		w, err := e.weather.ResolveWeather(ctx, coord)
		if err != nil {
			e.lookupFailed(kindWeather, err)
			return
		}
		if err := e.resolvedWeather(r.ctx, r, w); err != nil {
			e.logger.Debug("Dropped weather", "error", err)
		}
	}()
}

func (e *Engine) lookupFailed(kind string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	e.mark(kindLookupError)
	e.logger.Warn("Lookup failed, keeping last known", "lookup", kind, "error", err)
}

// Snapshot returns the state as of the last applied event. It does not block.
func (e *Engine) Snapshot() State {
	return e.last.Load().Copy()
}

// SubscribeSnapshots delivers a snapshot after every mutating event.
// Subscribers must keep receiving or unsubscribe; a stalled subscriber stalls the engine.
func (e *Engine) SubscribeSnapshots(ch chan<- State) event.Subscription {
	return e.feed.Subscribe(ch)
}

// Summary returns the live session summary, or the last session's once stopped.
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	r := e.current()
	if r == nil {
		if s := e.summary.Load(); s != nil {
			return *s, nil
		}
		return Summary{}, ErrNotRunning
	}
	var s Summary
	err := e.submit(ctx, r, "", func(r *run) bool {
		s = r.tracker.Summary()
		return false
	})
	if errors.Is(err, ErrNotRunning) {
		// ctx ended r without a Stop; its tracker is at rest once the loop exits.
		<-r.done
		return r.tracker.Summary(), nil
	}
	return s, err
}

func (e *Engine) Registry() gethmetrics.Registry {
	return e.registry
}
