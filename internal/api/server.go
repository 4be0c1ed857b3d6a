package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/radio-control/rhal/internal/auth"
	"github.com/radio-control/rhal/internal/radio"
	"github.com/radio-control/rhal/internal/telemetry"
)

// Server is the HTTP control surface for one radio.
type Server struct {
	httpServer *http.Server
	radio      *radio.Radio
	hub        *telemetry.Hub
	authMW     *auth.Middleware
	startTime  time.Time
}

// NewServer creates an API server. authMW may be built around a nil
// verifier to run without authentication.
func NewServer(r *radio.Radio, hub *telemetry.Hub, authMW *auth.Middleware) *Server {
	if authMW == nil {
		authMW = auth.NewMiddleware(nil)
	}
	return &Server{
		radio:     r,
		hub:       hub,
		authMW:    authMW,
		startTime: time.Now(),
	}
}

// Handler builds the route table. Exposed for httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Start serves on addr until Stop. Blocks.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
