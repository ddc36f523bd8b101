package webd

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rotblauer/catdrive/session"
	"github.com/rotblauer/catdrive/source"
	"github.com/rotblauer/catdrive/types/sample"
)

// maxBodyBytes caps an ingest request body. A reading is a few hundred bytes.
const maxBodyBytes = 64 << 10

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	Running   bool      `json:"running"`
	WSOpen    bool      `json:"ws_open"`
	WSConns   int       `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Running:   s.engine.Running(),
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
	})
}

func (s *WebDaemon) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Snapshot())
}

// handleSnapshotGeoJSON serves the snapshot as a point feature,
// or No Content before the first fix.
func (s *WebDaemon) handleSnapshotGeoJSON(w http.ResponseWriter, r *http.Request) {
	f := s.engine.Snapshot().Feature()
	if f == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, f)
}

func (s *WebDaemon) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, sum)
}

// handlePosition takes a fix, or a position failure if the body carries an error.
// It responds with the snapshot the reading produced.
func (s *WebDaemon) handlePosition(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	var err error
	if rec.Error != "" {
		err = s.engine.OnPositionError(r.Context(), rec.PositionError())
	} else {
		var p sample.Position
		if p, err = rec.Position(); err == nil {
			if p.Time.IsZero() {
				p.Time = time.Now()
			}
			err = s.engine.OnPositionSample(r.Context(), p)
		}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, s.engine.Snapshot())
}

// handleMotion takes a device motion event.
func (s *WebDaemon) handleMotion(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	m, err := rec.Motion()
	if err == nil {
		err = s.engine.OnMotionSample(r.Context(), m)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, s.engine.Snapshot())
}

func (s *WebDaemon) decodeRecord(w http.ResponseWriter, r *http.Request) (source.Record, bool) {
	var rec source.Record
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return rec, false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&rec); err != nil {
		s.logger.Warn("Failed to decode", "url", r.URL, "error", err)
		http.Error(w, "Failed to decode", http.StatusBadRequest)
		return rec, false
	}
	return rec, true
}

func (s *WebDaemon) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sample.ErrInvalidCoordinate),
		errors.Is(err, sample.ErrInvalidMotion),
		errors.Is(err, sample.ErrNoAcceleration):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, session.ErrNotRunning):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Error("Request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
