package webd

import (
	"context"
	"encoding/json"

	"github.com/olahol/melody"
	"github.com/rotblauer/catdrive/session"
)

type websocketAction string

var websocketActionSnapshot websocketAction = "snapshot"

type broadcast struct {
	Action websocketAction `json:"action"`
	State  session.State   `json:"state"`
}

func marshalSnapshot(st session.State) ([]byte, error) {
	return json.Marshal(broadcast{Action: websocketActionSnapshot, State: st})
}

// initMelody sets up the websocket handler.
// Viewers get the latest snapshot on connect, then every one after.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Debug("Websocket connected", "remote", sess.Request.RemoteAddr)
		b, err := marshalSnapshot(s.engine.Snapshot())
		if err != nil {
			s.logger.Error("Failed to marshal snapshot", "error", err)
			return
		}
		_ = sess.Write(b)
	})

	// Viewers have nothing to say. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", sess.Request.RemoteAddr, "msg", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Debug("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", sess.Request.RemoteAddr, "error", e)
	})
}

// broadcastSnapshots pushes every snapshot the engine publishes to all viewers
// until ctx is done.
func (s *WebDaemon) broadcastSnapshots(ctx context.Context) {
	snapshots := make(chan session.State, 16)
	sub := s.engine.SubscribeSnapshots(snapshots)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error("Snapshot subscription failed", "error", err)
			}
			return
		case st := <-snapshots:
			if s.melodyInstance.Len() == 0 {
				continue
			}
			b, err := marshalSnapshot(st)
			if err != nil {
				s.logger.Error("Failed to marshal snapshot", "error", err)
				continue
			}
			if err := s.melodyInstance.Broadcast(b); err != nil {
				s.logger.Warn("Failed to broadcast snapshot", "error", err)
			}
		}
	}
}
