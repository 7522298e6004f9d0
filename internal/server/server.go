// Package server implements the local rate-limited registry proxy started
// by "consecrates serve".
//
// Every upstream request goes through one [crates.Client] gate, so any
// number of local tools can share the proxy and the registry still sees a
// single client honoring the minimum interval. Blocking is the default;
// add ?nonblocking=1 to get 429 Too Many Requests with a Retry-After header
// instead of waiting.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// Server is the HTTP proxy in front of the registry API.
type Server struct {
	router *chi.Mux
	server *http.Server
	client *crates.Client
	logger *log.Logger
	addr   string
}

// New creates a server listening on addr that forwards to client.
// A nil logger discards request logs.
func New(addr string, client *crates.Client, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "NOT_FOUND", "the requested resource was not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is supported")
	})

	s := &Server{
		router: r,
		client: client,
		logger: logger,
		addr:   addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting proxy", "addr", ln.Addr().String(), "upstream", s.client.Gate().BaseURL())
	return s.server.Serve(ln)
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down proxy")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
