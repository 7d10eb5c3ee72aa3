package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kennydoit/fin-trade-craft/pkg/config"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// Server serves the read-only pipeline API
type Server struct {
	http   *http.Server
	env    string
	logger *logger.Logger
}

// New creates a server listening on cfg.Port. The write timeout leaves room
// for a quality report computed on a cache miss.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		env:    cfg.Env,
		logger: log.WithField("module", "api"),
	}
}

// Addr is the listen address
func (s *Server) Addr() string { return s.http.Addr }

// Start blocks serving requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"addr": s.http.Addr,
		"env":  s.env,
	}).Info("Starting API server")

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("api server: %w", err)
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
