// Package server is the HTTP API surface: auth, credential management,
// preferences, balances, and the scanner's published results.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/server/handler"
	"github.com/tmcalloway/spreadbot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	JWTSecret   string

	// AuthRateLimit / AuthRateWindow throttle the signup and login
	// endpoints per client IP.
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Keys        *handler.KeysHandler
	Preference  *handler.PreferenceHandler
	Balance     *handler.BalanceHandler
	Opportunity *handler.OpportunityHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil,
// which disables auth-endpoint throttling.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	authed := middleware.Auth(cfg.JWTSecret)

	throttled := func(h http.HandlerFunc) http.Handler {
		if limiter == nil || cfg.AuthRateLimit <= 0 {
			return h
		}
		return middleware.RateLimit(limiter, cfg.AuthRateLimit, cfg.AuthRateWindow)(h)
	}

	// Public routes.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("POST /api/signup", throttled(handlers.Auth.Signup))
	mux.Handle("POST /api/login", throttled(handlers.Auth.Login))

	// Authenticated routes.
	mux.Handle("POST /api/keys", authed(http.HandlerFunc(handlers.Keys.Save)))
	mux.Handle("GET /api/keys", authed(http.HandlerFunc(handlers.Keys.List)))
	mux.Handle("GET /api/preferences", authed(http.HandlerFunc(handlers.Preference.Get)))
	mux.Handle("PUT /api/preferences", authed(http.HandlerFunc(handlers.Preference.Update)))
	mux.Handle("GET /api/balances", authed(http.HandlerFunc(handlers.Balance.List)))
	mux.Handle("GET /api/opportunity", authed(http.HandlerFunc(handlers.Opportunity.Latest)))
	mux.Handle("GET /api/executions", authed(http.HandlerFunc(handlers.Opportunity.Executions)))

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
