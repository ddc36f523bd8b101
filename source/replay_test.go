package source

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotblauer/catdrive/session"
	"github.com/rotblauer/catdrive/types/sample"
)

const recording = `{"type":"position","time":"2024-05-01T08:00:00Z","latitude":48.8566,"longitude":2.3522,"speed":10,"accuracy":5}
{"type":"motion","time":"2024-05-01T08:00:00.2Z","acceleration":{"x":0,"y":0,"z":1}}
{"type":"motion","time":"2024-05-01T08:00:00.4Z","acceleration":{"x":null,"y":null,"z":null},"accelerationIncludingGravity":{"x":0.1,"y":9.8,"z":6}}
{"type":"position_error","time":"2024-05-01T08:00:01Z","error":"timeout"}
{"type":"position","time":"2024-05-01T08:00:02Z","latitude":48.8570,"longitude":2.3522,"speed":-1}
{"type":"wheel","time":"2024-05-01T08:00:03Z"}
{"type":"position","time":"2024-05-01T08:00:04Z","latitude":148.8570,"longitude":2.3522}
`

// recorder is a Sink that remembers what it was handed, in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	pos    []sample.Position
	motion []sample.MotionSample
	err    error
}

func (r *recorder) OnPositionSample(_ context.Context, p sample.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := p.Validate(); err != nil {
		return err
	}
	r.events = append(r.events, RecordPosition)
	r.pos = append(r.pos, p)
	return r.err
}

func (r *recorder) OnPositionError(_ context.Context, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordPositionError)
	return r.err
}

func (r *recorder) OnMotionSample(_ context.Context, m sample.MotionSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordMotion)
	r.motion = append(r.motion, m)
	return r.err
}

func pumpReplay(t *testing.T, rp *Replay, sink Sink) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	positions, positionErrs := rp.Positions(ctx)
	motions, err := RequireMotion(ctx, rp)
	if err != nil {
		t.Fatal(err)
	}
	return Pump(ctx, sink, positions, positionErrs, motions)
}

func TestReplay_order(t *testing.T) {
	rp := NewReplay(strings.NewReader(recording))
	sink := &recorder{}
	if err := pumpReplay(t, rp, sink); err != nil {
		t.Fatal(err)
	}
	if err := rp.Err(); err != nil {
		t.Fatal(err)
	}
	want := []string{"position", "motion", "motion", "position_error", "position"}
	if strings.Join(sink.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", sink.events, want)
	}
	if sink.motion[1].Z != 6 {
		t.Errorf("gravity fallback: z = %v, want 6", sink.motion[1].Z)
	}
	if p := sink.pos[0]; p.Lat() != 48.8566 || *p.Speed != 10 || *p.Accuracy != 5 {
		t.Errorf("first position = %+v", p)
	}
	if p := sink.pos[1]; p.Time.IsZero() || p.Accuracy != nil {
		t.Errorf("second position = %+v", p)
	}
}

func TestReplay_dedupe(t *testing.T) {
	line := `{"type":"position","time":"2024-05-01T08:00:00Z","latitude":48.8566,"longitude":2.3522}` + "\n"
	other := `{"type":"position","time":"2024-05-01T08:00:01Z","latitude":48.8566,"longitude":2.3522}` + "\n"
	in := line + line + other + line

	sink := &recorder{}
	if err := pumpReplay(t, NewReplay(strings.NewReader(in), WithDedupe(100)), sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.pos) != 2 {
		t.Errorf("deduped positions = %d, want 2", len(sink.pos))
	}

	sink = &recorder{}
	if err := pumpReplay(t, NewReplay(strings.NewReader(in)), sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.pos) != 4 {
		t.Errorf("positions = %d, want 4", len(sink.pos))
	}
}

func TestReplay_withoutMotion(t *testing.T) {
	rp := NewReplay(strings.NewReader(recording), WithoutMotion())
	if _, err := RequireMotion(context.Background(), rp); !errors.Is(err, ErrMotionUnsupported) {
		t.Errorf("err = %v, want ErrMotionUnsupported", err)
	}
}

type positionsOnly struct{}

func (positionsOnly) Positions(context.Context) (<-chan sample.Position, <-chan error) {
	return nil, nil
}

func TestRequireMotion(t *testing.T) {
	if _, err := RequireMotion(context.Background(), positionsOnly{}); !errors.Is(err, ErrMotionUnsupported) {
		t.Errorf("err = %v, want ErrMotionUnsupported", err)
	}
}

func TestReplay_pace(t *testing.T) {
	in := `{"type":"position","time":"2024-05-01T08:00:00Z","latitude":1,"longitude":1}
{"type":"position","time":"2024-05-01T08:00:01Z","latitude":1,"longitude":1}
`
	start := time.Now()
	sink := &recorder{}
	if err := pumpReplay(t, NewReplay(strings.NewReader(in), WithPace(10)), sink); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("replayed a 1s gap at 10x in %v", elapsed)
	}
}

func TestPump_sinkError(t *testing.T) {
	sink := &recorder{err: session.ErrNotRunning}
	err := pumpReplay(t, NewReplay(strings.NewReader(recording)), sink)
	if !errors.Is(err, session.ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
	if len(sink.events) != 1 {
		t.Errorf("events after error = %d, want 1", len(sink.events))
	}
}

// TestPump_engine drives a real session from a recording.
func TestPump_engine(t *testing.T) {
	e, err := session.NewEngine(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	if err := pumpReplay(t, NewReplay(strings.NewReader(recording)), e); err != nil {
		t.Fatal(err)
	}
	s := e.Snapshot()
	if s.LastCoordinate == nil || s.LastCoordinate.Lat() != 48.8570 {
		t.Fatalf("last coordinate = %v", s.LastCoordinate)
	}
	if s.Speed != nil {
		t.Errorf("speed -1 not normalized away: %v", *s.Speed)
	}
	// z=1 at 10 m/s is gentle both ways; z=6 is harsh braking.
	if s.BrakingScore != 49.1 || s.AccelerationScore != 50.2 {
		t.Errorf("scores = %v/%v, want 49.1/50.2", s.BrakingScore, s.AccelerationScore)
	}
	sum, err := e.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Positions != 2 || sum.Motions != 2 || sum.PositionErrors != 1 {
		t.Errorf("summary counts = %d/%d/%d", sum.Positions, sum.Motions, sum.PositionErrors)
	}
}
