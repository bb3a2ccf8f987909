package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"askdocs-ai/internal/handlers"
)

// Deps holds the handlers mounted by the router.
type Deps struct {
	Ask       *handlers.AskHandler
	Documents *handlers.DocumentHandler
	Health    *handlers.HealthHandler
	Sync      *handlers.SyncHandler
}

// NewRouter creates the HTTP router with middleware and API routes.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", deps.Ask)
		r.Method(http.MethodGet, "/health", deps.Health)
		r.Method(http.MethodPost, "/sync", deps.Sync)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", deps.Documents.Create)
			r.Get("/", deps.Documents.List)
			r.Get("/{id}", deps.Documents.Get)
			r.Delete("/{id}", deps.Documents.Delete)
		})
	})

	return r
}
