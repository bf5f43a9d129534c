package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/netutil"

	"github.com/remiblancher/ocspkit/internal/api/router"
	"github.com/remiblancher/ocspkit/internal/ca"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

// Server is the HTTP front end of an OCSP responder.
type Server struct {
	cfg       *Config
	version   string
	responder *ocsp.Responder
	store     ca.Store
	srv       *http.Server
}

// New creates a new Server answering from the given responder. The store
// backs the readiness check; it should be the same store the responder
// reads its index from.
func New(cfg *Config, version string, responder *ocsp.Responder, store ca.Store) *Server {
	return &Server{
		cfg:       cfg,
		version:   version,
		responder: responder,
		store:     store,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	handler := router.New(&router.Config{
		Version:   s.version,
		Responder: s.responder,
		Store:     s.store,
	})

	s.srv = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}

	s.printStartupInfo(ln.Addr())

	errChan := make(chan error, 1)
	go func() {
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			errChan <- s.srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			errChan <- s.srv.Serve(ln)
		}
	}()

	// Wait for shutdown signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		return s.Shutdown()
	}

	return nil
}

// Shutdown gracefully stops the server, letting in-flight requests finish
// within the configured shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}

// printStartupInfo prints server startup information.
func (s *Server) printStartupInfo(addr net.Addr) {
	scheme := "http"
	if s.cfg.TLSCert != "" {
		scheme = "https"
	}

	fmt.Println()
	fmt.Println("OCSP Responder")
	fmt.Println("==============")
	fmt.Printf("  Version:  %s\n", s.version)
	fmt.Printf("  Address:  %s://%s\n", scheme, addr)
	fmt.Printf("  CA dir:   %s\n", s.cfg.CADir)
	if s.cfg.TLSCert != "" {
		fmt.Println("  TLS:      enabled")
	}
	if s.cfg.MaxConns > 0 {
		fmt.Printf("  Conns:    max %d\n", s.cfg.MaxConns)
	}
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health             - Health check")
	fmt.Println("  GET  /ready              - Readiness check")
	fmt.Println("  GET  /api/openapi.yaml   - OpenAPI specification")
	fmt.Println("  POST /ocsp               - RFC 6960 responder (DER body)")
	fmt.Println("  GET  /ocsp/{request}     - RFC 6960 responder (base64 path)")
	fmt.Println("  POST /api/v1/ocsp/query  - JSON status query")
	fmt.Println()
	fmt.Println("Use Ctrl+C to stop")
	fmt.Println()
}
