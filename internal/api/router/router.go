// Package router assembles the HTTP surface of the responder.
package router

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/ocspkit/internal/api/handler"
	"github.com/remiblancher/ocspkit/internal/api/middleware"
	"github.com/remiblancher/ocspkit/internal/api/service"
	"github.com/remiblancher/ocspkit/internal/ca"
	"github.com/remiblancher/ocspkit/internal/ocsp"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config carries everything the router wires together.
type Config struct {
	Version   string
	Responder *ocsp.Responder
	Store     ca.Store // backs the readiness check, may be nil
}

// New builds the chi router: RFC 6960 endpoints under /ocsp, ops
// probes at /health and /ready, and a JSON API under /api/v1.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	checks := map[string]handler.ReadyCheck{}
	if cfg.Store != nil {
		checks["index"] = func(ctx context.Context) error {
			_, err := cfg.Store.ReadIndex(ctx)
			return err
		}
	}
	health := handler.NewHealthHandler(cfg.Version, checks)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Get("/api/openapi.yaml", serveOpenAPI)

	ocspHandler := handler.NewOCSPHandler(service.NewOCSPService(cfg.Responder))

	// Protocol endpoints for standard clients. The GET form carries
	// the base64 request in the path; StripPrefix leaves the bare
	// encoded request for the handler.
	r.Post("/ocsp", ocspHandler.Respond)
	r.Get("/ocsp", ocspHandler.Respond)
	r.Handle("/ocsp/*", http.StripPrefix("/ocsp", http.HandlerFunc(ocspHandler.Respond)))

	// JSON surface for tooling and dashboards.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS)
		r.Route("/ocsp", func(r chi.Router) {
			r.Post("/query", ocspHandler.Query)
		})
	})

	return r
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "application/yaml")
	h.Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(openapiSpec)
}
