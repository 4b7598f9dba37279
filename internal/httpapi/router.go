// Package httpapi is the HTTP surface collaborator (spec §4.12): search,
// listing, and artifact retrieval/upload, registered with huma so the
// service self-documents an OpenAPI schema, matching this stack's existing
// huma-on-chi wiring.
package httpapi

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/devzbysiu/dox-sub000/internal/auth"
)

// NewRouter builds the chi router, mounts the auth middleware, and
// registers every operation against a huma API instance.
func NewRouter(h *Handlers, verifier *auth.Verifier) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	if verifier != nil {
		r.Use(verifier.Middleware)
	}

	config := huma.DefaultConfig("dox", "1.0.0")
	config.Info.Description = "Personal document ingestion and full-text search service."
	api := humachi.New(r, config)

	huma.Get(api, "/health", func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	RegisterRoutes(api, h)
	return r
}
