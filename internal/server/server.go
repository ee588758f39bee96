// Package server exposes the mail credential lifecycle over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kindredhq/kindred/internal/config"
	"github.com/kindredhq/kindred/internal/logger"
	"github.com/kindredhq/kindred/internal/oauth"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Server wraps the HTTP listener around the mail-linking handlers.
type Server struct {
	config  *config.Config
	handler *Handler
}

// NewServer creates a new Server instance with the provided configuration.
func NewServer(cfg *config.Config, svc *oauth.Service) *Server {
	if cfg == nil {
		logger.Fatal("Config cannot be nil")
	}
	if svc == nil {
		logger.Fatal("Service cannot be nil")
	}

	return &Server{
		config:  cfg,
		handler: NewHandler(svc, &cfg.Mail),
	}
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           CORS(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Channel for server errors
	errChan := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", addr),
			zap.String("version", config.GetVersionInfo()),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server",
			zap.Duration("timeout", shutdownTimeout),
		)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
