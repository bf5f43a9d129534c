// Package server runs the responder's HTTP front end: listener setup,
// TLS, connection limits and graceful shutdown.
package server

import (
	"net"
	"strconv"
	"time"
)

// Config holds the responder server configuration.
type Config struct {
	Host  string // bind address, all interfaces when empty
	Port  int    // HTTP port to listen on
	CADir string // CA directory the responder answers from

	// OCSP normally runs over plain HTTP so that status checks do not
	// depend on the very certificates they are asked about. Set both
	// paths to serve HTTPS anyway.
	TLSCert string
	TLSKey  string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxConns caps concurrent connections. Zero disables the limit.
	MaxConns int
}

// DefaultConfig returns the stock configuration serve starts from.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxConns:        512,
	}
}

// Address returns the listen address, bracketing IPv6 hosts.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
