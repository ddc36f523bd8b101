package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/types/sample"
)

type countingLimits struct {
	calls atomic.Int32
	err   error
}

func (c *countingLimits) ResolveSpeedLimit(context.Context, sample.Coordinate, float64) (float64, bool, error) {
	c.calls.Add(1)
	return 50, true, c.err
}

type countingWeather struct {
	calls atomic.Int32
}

func (c *countingWeather) ResolveWeather(context.Context, sample.Coordinate) (sample.Weather, error) {
	c.calls.Add(1)
	return sample.Weather{Temperature: 20}, nil
}

func TestCellID(t *testing.T) {
	near := sample.Coordinate{Point: geo.PointAtBearingAndDistance(paris.Point, 90, 1)}
	far := sample.Coordinate{Point: geo.PointAtBearingAndDistance(paris.Point, 90, 5000)}
	if CellID(paris, 10) != CellID(near, 10) {
		t.Error("1m apart in different level 10 cells")
	}
	if CellID(paris, 16) == CellID(far, 16) {
		t.Error("5km apart in the same level 16 cell")
	}
	if got := CellID(paris, 16).Level(); got != 16 {
		t.Errorf("level = %d, want 16", got)
	}
}

func TestCachedSpeedLimits(t *testing.T) {
	ctx := context.Background()
	next := &countingLimits{}
	c, err := NewCachedSpeedLimits(next, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		kmh, ok, err := c.ResolveSpeedLimit(ctx, paris, 10)
		if err != nil || !ok || kmh != 50 {
			t.Fatalf("got %v, %v, %v", kmh, ok, err)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	far := sample.Coordinate{Point: geo.PointAtBearingAndDistance(paris.Point, 0, 2000)}
	if _, _, err := c.ResolveSpeedLimit(ctx, far, 10); err != nil {
		t.Fatal(err)
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestCachedSpeedLimits_errorsNotCached(t *testing.T) {
	next := &countingLimits{err: errors.New("timeout")}
	c, err := NewCachedSpeedLimits(next, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, _, err := c.ResolveSpeedLimit(context.Background(), paris, 10); err == nil {
			t.Fatal("expected error")
		}
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestCachedWeather_expires(t *testing.T) {
	ctx := context.Background()
	config := params.DefaultResolverCacheConfig()
	config.WeatherTTL = 50 * time.Millisecond
	next := &countingWeather{}
	c := NewCachedWeather(next, config)
	defer c.Close()

	for i := 0; i < 3; i++ {
		if _, err := c.ResolveWeather(ctx, paris); err != nil {
			t.Fatal(err)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := c.ResolveWeather(ctx, paris); err != nil {
		t.Fatal(err)
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("upstream calls after expiry = %d, want 2", n)
	}
}

func TestStatic(t *testing.T) {
	kmh, ok, err := StaticSpeedLimit(50).ResolveSpeedLimit(context.Background(), paris, 0)
	if err != nil || !ok || kmh != 50 {
		t.Errorf("got %v, %v, %v", kmh, ok, err)
	}
	if _, ok, _ := StaticSpeedLimit(0).ResolveSpeedLimit(context.Background(), paris, 0); ok {
		t.Error("zero static limit reported as known")
	}
}
