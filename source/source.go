// Package source feeds readings into a driving session.
package source

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rotblauer/catdrive/session"
	"github.com/rotblauer/catdrive/types/sample"
)

// ErrMotionUnsupported means a source cannot report motion.
// A session cannot be scored without it.
var ErrMotionUnsupported = errors.New("motion events not supported")

// Sink receives readings. *session.Engine is one.
type Sink interface {
	OnPositionSample(ctx context.Context, p sample.Position) error
	OnPositionError(ctx context.Context, cause error) error
	OnMotionSample(ctx context.Context, m sample.MotionSample) error
}

var _ Sink = (*session.Engine)(nil)

// PositionSource delivers position fixes, and position failures on the error channel.
type PositionSource interface {
	Positions(ctx context.Context) (<-chan sample.Position, <-chan error)
}

// MotionSource delivers motion samples.
// Motions returns ErrMotionUnsupported when the device has no motion sensor.
type MotionSource interface {
	Motions(ctx context.Context) (<-chan sample.MotionSample, error)
}

// RequireMotion opens the motion stream of src, which must have one.
func RequireMotion(ctx context.Context, src PositionSource) (<-chan sample.MotionSample, error) {
	ms, ok := src.(MotionSource)
	if !ok {
		return nil, ErrMotionUnsupported
	}
	return ms.Motions(ctx)
}

// Pump forwards readings to sink until every channel closes or ctx is done.
// Readings the sink rejects as invalid are logged and skipped.
// Any other sink error, such as session.ErrNotRunning, ends the pump.
func Pump(ctx context.Context, sink Sink, positions <-chan sample.Position, positionErrs <-chan error, motions <-chan sample.MotionSample) error {
	logger := slog.With("d", "pump")
	var err error
	for positions != nil || positionErrs != nil || motions != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-positions:
			if !ok {
				positions = nil
				continue
			}
			err = sink.OnPositionSample(ctx, p)
		case cause, ok := <-positionErrs:
			if !ok {
				positionErrs = nil
				continue
			}
			err = sink.OnPositionError(ctx, cause)
		case m, ok := <-motions:
			if !ok {
				motions = nil
				continue
			}
			err = sink.OnMotionSample(ctx, m)
		}
		if errors.Is(err, sample.ErrInvalidCoordinate) || errors.Is(err, sample.ErrInvalidMotion) {
			logger.Warn("Skipping invalid reading", "error", err)
			err = nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
