package server

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server terminating inbound webhook traffic. TLS is
// expected to terminate at the fronting proxy, which forwards the original
// protocol in X-Forwarded-Proto.
type Server struct {
	srv *http.Server
}

// New creates a new server instance
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start starts the server in a goroutine; errFn receives a fatal listen error.
func (s *Server) Start(errFn func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errFn(err)
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
