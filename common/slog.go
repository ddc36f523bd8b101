package common

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SlogResetLevel returns a function that resets the slog level to the previous level,
// pairs well with defer.
// Use like:
//
//	func Test123(t *testing.T) {
//	    defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}

// NewSlogHandler returns a text or json handler writing to w.
func NewSlogHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format: %q", format)
}
