// Package api provides the HTTP/HTTPS server and routing for the srpgate API.
//
//nolint:revive // "api" is a clear and appropriate package name
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fzdarsky/srpgate/internal/config"
	"github.com/fzdarsky/srpgate/internal/logging"
	tlspkg "github.com/fzdarsky/srpgate/internal/tls"
)

// Server represents the HTTP/HTTPS API server.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
	insecure   bool
	listenFn   func(network, addr string) (net.Listener, error)
}

// New creates a new API server serving handler. TLS is configured from the
// certificate pair unless the transport is marked insecure.
func New(cfg *config.Config, logger *logging.Logger, handler http.Handler) (*Server, error) {
	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:   logger,
		insecure: cfg.Transports.HTTP.Insecure,
		listenFn: net.Listen,
	}

	if !server.insecure {
		tlsConfig, err := tlspkg.NewServerConfig(
			cfg.Transports.HTTP.TLSCert,
			cfg.Transports.HTTP.TLSKey,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		server.httpServer.TLSConfig = tlsConfig
	}

	return server, nil
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.listenFn("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Start but uses an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", map[string]any{
		"address": ln.Addr().String(),
		"tls":     !s.insecure,
	})

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.insecure {
			err = s.httpServer.Serve(ln)
		} else {
			// Certificates come from httpServer.TLSConfig.
			err = s.httpServer.ServeTLS(ln, "", "")
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
