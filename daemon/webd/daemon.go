package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/session"
	"github.com/rotblauer/catdrive/source"
)

// Engine is what the web daemon needs of a driving session.
// *session.Engine is one.
type Engine interface {
	source.Sink
	Running() bool
	Snapshot() session.State
	Summary(ctx context.Context) (session.Summary, error)
	SubscribeSnapshots(ch chan<- session.State) event.Subscription
}

var _ Engine = (*session.Engine)(nil)

// WebDaemon hosts a driving session over HTTP.
// Devices post readings to it; viewers poll snapshots or watch the socket.
type WebDaemon struct {
	Config         *params.WebDaemonConfig
	logger         *slog.Logger
	engine         Engine
	melodyInstance *melody.Melody
	started        time.Time
}

func NewWebDaemon(config *params.WebDaemonConfig, engine Engine) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	return &WebDaemon{
		Config:  config,
		logger:  slog.With("d", "web"),
		engine:  engine,
		started: time.Now(),
	}
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.broadcastSnapshots(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.melodyInstance.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Failed to shut down cleanly", "error", err)
		}
	}()

	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())
	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Web daemon stopped")
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()
	if s.Config.Token == "" {
		s.logger.Warn("No token set, allowing all ingest requests")
	}

	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	// All routes use permissive CORS settings; browsers preflight the JSON posts.
	router.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	router.Path("/ping").HandlerFunc(pingPong)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.melodyInstance.HandleRequest(w, r); err != nil {
			s.logger.Warn("Websocket upgrade failed", "error", err)
		}
	})

	apiJSONRoutes := router.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet, http.MethodOptions)
	apiJSONRoutes.Path("/snapshot").HandlerFunc(s.handleSnapshot).Methods(http.MethodGet, http.MethodOptions)
	apiJSONRoutes.Path("/summary").HandlerFunc(s.handleSummary).Methods(http.MethodGet, http.MethodOptions)

	geoJSONRoutes := router.NewRoute().Subrouter()
	geoJSONRoutes.Use(contentTypeMiddlewareFunc("application/geo+json"))
	geoJSONRoutes.Path("/snapshot.geojson").HandlerFunc(s.handleSnapshotGeoJSON).Methods(http.MethodGet, http.MethodOptions)

	ingestRoutes := apiJSONRoutes.NewRoute().Subrouter()
	ingestRoutes.Use(s.tokenAuthenticationMiddleware)
	ingestRoutes.Path("/position").HandlerFunc(s.handlePosition).Methods(http.MethodPost, http.MethodOptions)
	ingestRoutes.Path("/motion").HandlerFunc(s.handleMotion).Methods(http.MethodPost, http.MethodOptions)

	return router
}
