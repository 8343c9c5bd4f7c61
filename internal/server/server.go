// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package server exposes the simulation engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// APIVersion is the version reported in the OpenAPI document.
const APIVersion = "1.0.0"

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
	// Tokens are the accepted bearer tokens. Empty disables authentication.
	Tokens    []string
	RateLimit RateLimitConfig

	// ReadTimeout bounds reading a request. Responses have no write
	// timeout because the event stream is long-lived.
	ReadTimeout time.Duration
	KeepAlive   time.Duration

	Simulation SimulationService
	Providers  ProviderService
	Version    string
	Logger     *slog.Logger
}

// Server wraps a chi router with the huma API.
type Server struct {
	router chi.Router
	api    huma.API
	cfg    Config
	log    *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with every route registered.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, sxerr.New(sxerr.CodeServerConfigInvalid, "listen address is required")
	}
	if cfg.Simulation == nil {
		return nil, sxerr.New(sxerr.CodeServerConfigInvalid, "simulation service is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	srv := &Server{
		cfg:  cfg,
		log:  log.With("component", "server"),
		done: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, srv.done, srv.log))
	r.Use(authMiddleware(newTokenSet(cfg.Tokens), srv.log))

	humaConfig := huma.DefaultConfig("Sentrixa Scam Simulation Lab", APIVersion)
	humaConfig.Info.Description = "Run synthetic scam conversations between an attacker and a defender agent and review the incident reports they produce."
	srv.router = r
	srv.api = humachi.New(r, humaConfig)

	srv.registerRoutes()
	srv.registerEventRoute()
	return srv, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, e.g. to dump the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return sxerr.Wrapf(err, sxerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if err != nil {
			return sxerr.Wrap(err, sxerr.CodeServerStartFailure, "serving http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sxerr.Wrap(err, sxerr.CodeServerShutdownFailure, "shutting down")
	}
	return <-errCh
}

// Close stops background work. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
