package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

// Server is the status API HTTP server.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for handler bound to bindAddr.
func NewServer(bindAddr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              bindAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	log.Infof("[API] Listening on http://%s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("[API] Shutting down server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
		return err
	}
	return nil
}
