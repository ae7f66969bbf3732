package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	httpmw "github.com/seawatch-io/seawatch/internal/pkg/middleware/http"
	"github.com/seawatch-io/seawatch/internal/relay/auth"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/inventory"
	"github.com/seawatch-io/seawatch/pkg/log"
	"github.com/seawatch-io/seawatch/pkg/options"
)

const shutdownTimeout = 5 * time.Second

// Ingester accepts raw telemetry from gateways.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte, contentType string) (*model.TelemetrySample, error)
}

// Viewers serves the websocket endpoints and closes live sessions on shutdown.
type Viewers interface {
	http.Handler
	Shutdown()
}

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

// Deps are the components the HTTP boundary fronts.
type Deps struct {
	Ingester Ingester
	Guard    *auth.Guard
	Viewers  Viewers
	// Vehicles backs GET /api/vehicles; nil disables the endpoint.
	Vehicles inventory.Lister
	Checks   map[string]Check
}

// Server is the single HTTP listener of the relay: login, telemetry ingest,
// viewer websockets, probes and metrics.
type Server struct {
	server  *http.Server
	options *options.HttpOptions
	deps    Deps

	gatewayKey     string
	anonymous      bool
	maxIngestBytes int64
	logger         log.Logger
}

// NewServer builds the router; Start begins listening.
func NewServer(opts *options.HttpOptions, relay *options.RelayOptions, deps Deps) *Server {
	s := &Server{
		options:        opts,
		deps:           deps,
		gatewayKey:     relay.GatewayKey,
		anonymous:      relay.AllowAnonymousIngest,
		maxIngestBytes: relay.MaxIngestBytes,
		logger:         log.WithName("http"),
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
		ReadTimeout:       opts.Timeout,
		WriteTimeout:      opts.Timeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(httpmw.Logger(s.logger), httpmw.CORS(s.options.AllowedOrigins))

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/telemetry", s.handleTelemetry).Methods(http.MethodPost, http.MethodOptions)
	if s.deps.Vehicles != nil {
		vehicles := api.PathPrefix("/vehicles").Subrouter()
		vehicles.Use(s.deps.Guard.RequireAuth())
		vehicles.HandleFunc("", s.handleVehicles).Methods(http.MethodGet)
	}

	// /ws and /ws/ carry no target; the session layer rejects them with a
	// close code rather than a 404.
	r.Handle("/ws", s.deps.Viewers).Methods(http.MethodGet)
	r.Handle("/ws/", s.deps.Viewers).Methods(http.MethodGet)
	r.Handle("/ws/{target}", s.deps.Viewers).Methods(http.MethodGet)

	return r
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	s.logger.Info("Starting HTTP Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// Hijacked websocket connections are invisible to Shutdown.
		s.deps.Viewers.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
