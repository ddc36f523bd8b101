package resolver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotblauer/catdrive/common"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/types/sample"
)

var paris = sample.NewCoordinate(48.8566, 2.3522)

func TestParseMaxSpeed(t *testing.T) {
	cases := []struct {
		tag  string
		kmh  float64
		want bool
	}{
		{"50", 50, true},
		{" 30 ", 30, true},
		{"30 mph", common.MphToKmh(30), true},
		{"30mph", common.MphToKmh(30), true},
		{"10 knots", common.KnotsToKmh(10), true},
		{"90 km/h", 90, true},
		{"50;30", 50, true},
		{"FR:urban", 50, true},
		{"fr:rural", 80, true},
		{"DE:rural", 100, true},
		{"GB:nsl_dual", common.MphToKmh(70), true},
		{"DE:motorway", 0, false},
		{"none", 0, false},
		{"signals", 0, false},
		{"walk", 0, false},
		{"", 0, false},
		{"-20", 0, false},
		{"NaN", 0, false},
	}
	for _, c := range cases {
		kmh, ok := ParseMaxSpeed(c.tag)
		if ok != c.want || math.Abs(kmh-c.kmh) > 1e-9 {
			t.Errorf("ParseMaxSpeed(%q) = %v, %v; want %v, %v", c.tag, kmh, ok, c.kmh, c.want)
		}
	}
}

func TestPickMaxSpeed(t *testing.T) {
	if _, ok := pickMaxSpeed(nil); ok {
		t.Error("no tags picked a limit")
	}
	if _, ok := pickMaxSpeed([]string{"none", "signals"}); ok {
		t.Error("unparseable tags picked a limit")
	}
	if v, _ := pickMaxSpeed([]string{"30", "50", "50"}); v != 50 {
		t.Errorf("most common: got %v, want 50", v)
	}
	if v, _ := pickMaxSpeed([]string{"70", "30"}); v != 30 {
		t.Errorf("tie: got %v, want 30", v)
	}
}

func TestOverpass_Radius(t *testing.T) {
	o := NewOverpass(nil)
	for _, c := range []struct{ accuracy, want float64 }{
		{3, 10}, {25, 25}, {1500, 50}, {math.NaN(), 50},
	} {
		if got := o.Radius(c.accuracy); got != c.want {
			t.Errorf("Radius(%v) = %v, want %v", c.accuracy, got, c.want)
		}
	}
}

func newOverpassServer(t *testing.T, status int, body string, gotQuery *string) *Overpass {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if gotQuery != nil {
			*gotQuery = r.FormValue("data")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	config := params.DefaultOverpassConfig()
	config.Endpoint = srv.URL
	return NewOverpass(config)
}

func TestOverpass_ResolveSpeedLimit(t *testing.T) {
	var query string
	o := newOverpassServer(t, http.StatusOK, `{
  "version": 0.6,
  "elements": [
    {"type": "way", "id": 1, "tags": {"highway": "primary", "maxspeed": "FR:urban"}},
    {"type": "way", "id": 2, "tags": {"highway": "residential", "maxspeed": "30"}},
    {"type": "way", "id": 3, "tags": {"highway": "primary", "maxspeed": "50"}}
  ]
}`, &query)

	kmh, ok, err := o.ResolveSpeedLimit(context.Background(), paris, 20)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || kmh != 50 {
		t.Errorf("got %v, %v; want 50, true", kmh, ok)
	}
	if !strings.Contains(query, "way(around:20,48.8566000,2.3522000)[maxspeed]") {
		t.Errorf("unexpected query %q", query)
	}
}

func TestOverpass_noWays(t *testing.T) {
	o := newOverpassServer(t, http.StatusOK, `{"elements": []}`, nil)
	_, ok, err := o.ResolveSpeedLimit(context.Background(), paris, 20)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("resolved a limit with no ways around")
	}
}

func TestOverpass_errors(t *testing.T) {
	o := newOverpassServer(t, http.StatusTooManyRequests, `rate limited`, nil)
	if _, _, err := o.ResolveSpeedLimit(context.Background(), paris, 20); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("err = %v, want ErrUnexpectedStatus", err)
	}
	o = newOverpassServer(t, http.StatusOK, `<html>`, nil)
	if _, _, err := o.ResolveSpeedLimit(context.Background(), paris, 20); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}
