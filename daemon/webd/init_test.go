package webd

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/session"
)

// newTestWebDaemon serves a fresh running session until the test ends.
func newTestWebDaemon(t *testing.T, token string) (*WebDaemon, *session.Engine, *httptest.Server) {
	t.Helper()
	engine, err := session.NewEngine(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	config := params.DefaultTestWebDaemonConfig()
	config.Token = token
	d := NewWebDaemon(config, engine)
	srv := httptest.NewServer(d.NewRouter())

	ctx, cancel := context.WithCancel(context.Background())
	go d.broadcastSnapshots(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
		engine.Stop()
	})
	return d, engine, srv
}
