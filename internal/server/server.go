package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultReadHeaderTimeout bounds how long a client may take to
	// send request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Server is the triagemail HTTP API server.
type Server struct {
	httpServer *http.Server
	health     *HealthChecker
	sc         *ServerContext
	addr       string
}

// NewServer creates the API server with its routes wired.
func NewServer(sc *ServerContext, addr string) *Server {
	s := &Server{
		health: NewHealthChecker(sc),
		sc:     sc,
		addr:   addr,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(sc.RequestMetrics)

	s.health.RegisterHealthEndpoints(r)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", sc.handleLogin)
		r.Get("/callback", sc.handleCallback)
		r.Post("/logout", sc.handleLogout)
		r.Get("/session", sc.handleSession)
	})

	// Protected dashboard API. The route guard runs per request.
	r.Group(func(r chi.Router) {
		r.Use(sc.RequireSession)
		r.Get("/emails", sc.handleEmails)
		r.Post("/emails/sync", sc.handleSync)
		r.Get("/dashboard/metrics", sc.handleMetrics)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listener, closes ready (when non-nil), and blocks
// serving requests until Shutdown.
func (s *Server) Start(ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	slog.Info("starting api server", "addr", s.addr)
	if ready != nil {
		close(ready)
	}
	return s.httpServer.Serve(listener)
}

// Shutdown drains in-flight requests and stops the server. Readiness
// probes start failing as soon as shutdown begins.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sc.Shutdown()
	s.health.SetReady(false)
	slog.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}
