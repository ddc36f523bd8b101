package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rotblauer/catdrive/stream"
	"github.com/rotblauer/catdrive/types/sample"
)

// Replay plays back an NDJSON recording of Records.
//
// Positions and Motions share one reader: every reading is handed over
// before the next is read, so a consumer that applies each reading before
// receiving the next (as Pump does) sees them in file order.
type Replay struct {
	in     io.Reader
	logger *slog.Logger

	dedupe int
	pace   float64
	motion bool

	once         sync.Once
	positions    chan sample.Position
	positionErrs chan error
	motions      chan sample.MotionSample

	mu  sync.Mutex
	err error
}

type ReplayOption func(r *Replay)

// WithDedupe drops records identical to one of the last size records.
func WithDedupe(size int) ReplayOption {
	return func(r *Replay) { r.dedupe = size }
}

// WithPace replays at the recorded pace sped up by factor.
// Records without a time are not delayed.
func WithPace(factor float64) ReplayOption {
	return func(r *Replay) { r.pace = factor }
}

// WithoutMotion replays as a device with no motion sensor.
func WithoutMotion() ReplayOption {
	return func(r *Replay) { r.motion = false }
}

func NewReplay(in io.Reader, opts ...ReplayOption) *Replay {
	r := &Replay{
		in:           in,
		logger:       slog.With("source", "replay"),
		motion:       true,
		positions:    make(chan sample.Position),
		positionErrs: make(chan error),
		motions:      make(chan sample.MotionSample),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Replay) Positions(ctx context.Context) (<-chan sample.Position, <-chan error) {
	r.start(ctx)
	return r.positions, r.positionErrs
}

func (r *Replay) Motions(ctx context.Context) (<-chan sample.MotionSample, error) {
	if !r.motion {
		return nil, ErrMotionUnsupported
	}
	r.start(ctx)
	return r.motions, nil
}

// Err returns the error that cut the replay short, if any,
// once the channels have closed.
func (r *Replay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Replay) start(ctx context.Context) {
	r.once.Do(func() { go r.run(ctx) })
}

func (r *Replay) run(ctx context.Context) {
	defer close(r.positions)
	defer close(r.positionErrs)
	defer close(r.motions)

	records, errs := stream.NDJSON[Record](ctx, r.in)
	if r.dedupe > 0 {
		records = stream.Filter(ctx, NewDedupeFunc(r.dedupe), records)
	}

	var last time.Time
	var n, skipped int
	for records != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, stream.ErrMalformedLine) {
				skipped++
				r.logger.Warn("Skipping record", "error", err)
				continue
			}
			r.fail(err)
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			if !r.wait(ctx, &last, rec.Time) {
				return
			}
			if err := r.emit(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return
				}
				skipped++
				r.logger.Warn("Skipping record", "type", rec.Type, "error", err)
				continue
			}
			n++
		}
	}
	r.logger.Info("Replay done", "records", n, "skipped", skipped)
}

func (r *Replay) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// wait sleeps out the recorded gap before t.
func (r *Replay) wait(ctx context.Context, last *time.Time, t time.Time) bool {
	if r.pace <= 0 || t.IsZero() {
		return true
	}
	defer func() { *last = t }()
	if last.IsZero() || !t.After(*last) {
		return true
	}
	timer := time.NewTimer(time.Duration(float64(t.Sub(*last)) / r.pace))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Replay) emit(ctx context.Context, rec Record) error {
	switch rec.Type {
	case RecordPosition:
		p, err := rec.Position()
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.positions <- p:
		}
	case RecordPositionError:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.positionErrs <- rec.PositionError():
		}
	case RecordMotion:
		if !r.motion {
			return nil
		}
		m, err := rec.Motion()
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.motions <- m:
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecord, rec.Type)
	}
	return nil
}
