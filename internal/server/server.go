package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/congruo/internal/app"
)

// The write timeout covers the slowest synchronous paths: brief generation
// holds the response open for one Claude round trip and PDF reports render
// inline. Websocket connections are exempt once hijacked.
const (
	readTimeout       = 15 * time.Second
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 90 * time.Second
	idleTimeout       = 60 * time.Second
)

// Server manages the HTTP server and routes
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server
}

// New creates a new HTTP server with the given app
func New(application *app.App) *Server {
	s := &Server{app: application}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port),
		Handler:           s.withConditionalMiddleware(s.router),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Start blocks serving requests until Shutdown or a listener error
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
