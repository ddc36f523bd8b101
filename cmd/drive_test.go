package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotblauer/catdrive/source"
	"github.com/tidwall/gjson"
)

const commute = `{"type":"position","time":"2024-05-01T08:00:00Z","latitude":48.8566,"longitude":2.3522,"speed":10,"accuracy":5}
{"type":"motion","time":"2024-05-01T08:00:00.5Z","acceleration":{"x":0,"y":0,"z":1}}
{"type":"position","time":"2024-05-01T08:00:10Z","latitude":48.8576,"longitude":2.3522,"speed":11,"accuracy":5}
{"type":"position_error","time":"2024-05-01T08:00:11Z","error":"timeout"}
{"type":"position","time":"2024-05-01T08:00:20Z","latitude":48.8586,"longitude":2.3522,"speed":12,"accuracy":5}
`

func writeCommute(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commute.ndjson")
	if err := os.WriteFile(path, []byte(commute), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDrive_replay(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"drive", "--replay", writeCommute(t), "--replay.no-motion=false",
		"--no-lookups", "--variant", "b", "--log.level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	summary := out.Bytes()
	if got := gjson.GetBytes(summary, "positions").Int(); got != 3 {
		t.Errorf("positions = %d, want 3: %s", got, summary)
	}
	if got := gjson.GetBytes(summary, "positionErrors").Int(); got != 1 {
		t.Errorf("position errors = %d, want 1", got)
	}
	// ~222m at one point per 50m.
	if got := gjson.GetBytes(summary, "points").Int(); got != 4 {
		t.Errorf("points = %d, want 4", got)
	}
	if got := gjson.GetBytes(summary, "speedMax").Float(); got != 12 {
		t.Errorf("speed max = %v, want 12", got)
	}
}

func TestDrive_replayWithoutMotion(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"drive", "--replay", writeCommute(t), "--replay.no-motion",
		"--no-lookups", "--log.level", "error"})
	err := rootCmd.Execute()
	if !errors.Is(err, source.ErrMotionUnsupported) {
		t.Errorf("err = %v, want ErrMotionUnsupported", err)
	}
}

func TestDrive_replaySpeedLimitOverride(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"drive", "--replay", writeCommute(t), "--replay.no-motion=false",
		"--replay.pace", "50", "--no-lookups", "--speedlimit.override", "36",
		"--variant", "a", "--log.level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	summary := out.Bytes()
	// 36 km/h is 10 m/s; the fixes after the first run at 11 and 12.
	if got := gjson.GetBytes(summary, "speedViolations").Int(); got != 2 {
		t.Errorf("speed violations = %d, want 2: %s", got, summary)
	}
	if got := gjson.GetBytes(summary, "speedScore").Float(); got != 30 {
		t.Errorf("speed score = %v, want 30", got)
	}
}
