// Package api exposes the signing coordinator to the host application over
// HTTP, together with health and Prometheus endpoints.
package api

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Server provides HTTP endpoints
type Server struct {
	logger   zerolog.Logger
	wallet   WalletCoordinator
	gatherer prometheus.Gatherer
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new Server instance. A nil gatherer serves the
// default Prometheus registry.
func NewServer(logger zerolog.Logger, port int, wallet WalletCoordinator, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		logger:   logger.With().Str("component", "api_server").Logger(),
		wallet:   wallet,
		gatherer: gatherer,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the port and serves in the background. It returns once the
// port is bound or binding failed.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		s.mu.Lock()
		s.listener = ln
		s.mu.Unlock()
		startupChan <- nil

		err = s.server.Serve(ln)
		switch err {
		case nil:
			s.logger.Info().Msg("API server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("API server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	select {
	case err := <-startupChan:
		if err != nil {
			return err
		}
		s.logger.Info().Str("addr", s.Addr()).Msg("API server listening")
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Stop shuts down the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
