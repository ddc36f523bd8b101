package webd

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotblauer/catdrive/common"
	"github.com/tidwall/gjson"
)

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://catdrive.local/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func do(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestWebDaemon_status(t *testing.T) {
	_, _, srv := newTestWebDaemon(t, "")
	resp, body := do(t, "GET", srv.URL+"/status", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	if !gjson.GetBytes(body, "running").Bool() {
		t.Errorf("status not running: %s", body)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestWebDaemon_position(t *testing.T) {
	_, engine, srv := newTestWebDaemon(t, "")

	resp, _ := do(t, "GET", srv.URL+"/snapshot.geojson", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("geojson before first fix: status %d, want 204", resp.StatusCode)
	}

	resp, body := do(t, "POST", srv.URL+"/position", "",
		`{"latitude": 48.8566, "longitude": 2.3522, "speed": 12.5, "accuracy": 8}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content type %q", resp.Header.Get("Content-Type"))
	}
	if got := gjson.GetBytes(body, "lastCoordinate.latitude").Float(); got != 48.8566 {
		t.Errorf("latitude = %v", got)
	}
	if got := gjson.GetBytes(body, "speed").Float(); got != 12.5 {
		t.Errorf("speed = %v", got)
	}
	if s := engine.Snapshot(); s.Accuracy == nil || *s.Accuracy != 8 {
		t.Errorf("engine accuracy = %v", s.Accuracy)
	}

	resp, body = do(t, "GET", srv.URL+"/snapshot.geojson", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("geojson status %d", resp.StatusCode)
	}
	if gjson.GetBytes(body, "type").String() != "Feature" {
		t.Errorf("body does not contain type Feature: %s", body)
	}
	if got := gjson.GetBytes(body, "geometry.coordinates.1").Float(); got != 48.8566 {
		t.Errorf("feature latitude = %v", got)
	}
	if got := gjson.GetBytes(body, "properties.Speed").Float(); got != 12.5 {
		t.Errorf("feature speed = %v", got)
	}
}

func TestWebDaemon_positionError(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError)()
	_, _, srv := newTestWebDaemon(t, "")

	resp, _ := do(t, "POST", srv.URL+"/position", "", `{"error": "User denied Geolocation"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	_, body := do(t, "GET", srv.URL+"/summary", "", "")
	if got := gjson.GetBytes(body, "positionErrors").Int(); got != 1 {
		t.Errorf("position errors = %d, want 1", got)
	}
	if gjson.GetBytes(body, "positions").Int() != 0 {
		t.Errorf("position error counted as a fix: %s", body)
	}
}

func TestWebDaemon_badInput(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError)()
	_, _, srv := newTestWebDaemon(t, "")
	cases := []struct {
		path, body string
		want       int
	}{
		{"/position", `{"latitude": 95, "longitude": 0}`, http.StatusUnprocessableEntity},
		{"/position", `{"speed": 3}`, http.StatusUnprocessableEntity},
		{"/position", `{"latitude": `, http.StatusBadRequest},
		{"/motion", `{"acceleration": {"x": null, "y": null, "z": null}}`, http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		resp, body := do(t, "POST", srv.URL+c.path, "", c.body)
		if resp.StatusCode != c.want {
			t.Errorf("POST %s %s: status %d, want %d (%s)", c.path, c.body, resp.StatusCode, c.want, body)
		}
	}
	resp, _ := do(t, "GET", srv.URL+"/position", "", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /position: status %d, want 405", resp.StatusCode)
	}
}

func TestWebDaemon_motion(t *testing.T) {
	_, _, srv := newTestWebDaemon(t, "")
	do(t, "POST", srv.URL+"/position", "", `{"latitude": 48.8566, "longitude": 2.3522, "speed": 10}`)

	// No linear acceleration: the gravity reading stands in.
	resp, body := do(t, "POST", srv.URL+"/motion", "",
		`{"acceleration": {"x": null, "y": null, "z": null}, "accelerationIncludingGravity": {"x": 0.2, "y": 9.7, "z": 7}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, body)
	}
	if got := gjson.GetBytes(body, "lastAcceleration.z").Float(); got != 7 {
		t.Errorf("z = %v, want 7", got)
	}
	if got := gjson.GetBytes(body, "brakingScore").Float(); got != 49 {
		t.Errorf("braking score = %v, want 49", got)
	}
}

func TestWebDaemon_token(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError)()
	_, _, srv := newTestWebDaemon(t, "s3cret")
	body := `{"latitude": 48.8566, "longitude": 2.3522}`

	if resp, _ := do(t, "POST", srv.URL+"/position", "", body); resp.StatusCode != http.StatusForbidden {
		t.Errorf("no token: status %d, want 403", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/position", "wrong", body); resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong token: status %d, want 403", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/position", "s3cret", body); resp.StatusCode != http.StatusOK {
		t.Errorf("header token: status %d, want 200", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/position?api_token=s3cret", "", body); resp.StatusCode != http.StatusOK {
		t.Errorf("query token: status %d, want 200", resp.StatusCode)
	}
	// Reads stay open.
	if resp, _ := do(t, "GET", srv.URL+"/snapshot", "", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("snapshot: status %d, want 200", resp.StatusCode)
	}
	// So do preflights.
	if resp, _ := do(t, "OPTIONS", srv.URL+"/position", "", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight: status %d, want 204", resp.StatusCode)
	}
}

func TestWebDaemon_preflight(t *testing.T) {
	_, _, srv := newTestWebDaemon(t, "")
	for _, path := range []string{"/status", "/snapshot", "/summary", "/snapshot.geojson", "/position", "/motion"} {
		resp, _ := do(t, "OPTIONS", srv.URL+path, "", "")
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("%s: status %d, want 204", path, resp.StatusCode)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s: missing CORS header", path)
		}
	}
}

func TestWebDaemon_notRunning(t *testing.T) {
	_, engine, srv := newTestWebDaemon(t, "")
	engine.Stop()
	resp, _ := do(t, "POST", srv.URL+"/position", "", `{"latitude": 48.8566, "longitude": 2.3522}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", resp.StatusCode)
	}
}

func TestWebDaemon_socket(t *testing.T) {
	_, _, srv := newTestWebDaemon(t, "")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/socket", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(msg, "action").String() != "snapshot" {
		t.Fatalf("first message is not a snapshot: %s", msg)
	}
	if gjson.GetBytes(msg, "state.lastCoordinate").Type != gjson.Null {
		t.Errorf("fresh session has a coordinate: %s", msg)
	}

	do(t, "POST", srv.URL+"/position", "", `{"latitude": 48.8566, "longitude": 2.3522, "speed": 4}`)
	for {
		_, msg, err = conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if gjson.GetBytes(msg, "state.speed").Float() == 4 {
			break
		}
	}
}
