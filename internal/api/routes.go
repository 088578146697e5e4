package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vitalsync/vitalsync/internal/config"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, auth config.AuthConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Public routes (no auth required)
	r.Get("/health", h.Health)

	// Sync surface consumed by mobile clients (auth required)
	r.Route("/rest/event", func(r chi.Router) {
		r.Use(BasicAuthMiddleware(auth.Username, auth.Password))
		r.Get("/sync", h.Sync)
		r.Post("/sync", h.SyncByPost)
		r.Post("/sync-by-base-entity-ids", h.SyncByBaseEntityIDs)
		r.Get("/getAll", h.GetAll)
		r.Post("/add", h.Add)
		r.Get("/findIdsByEventType", h.FindIDsByEventType)
		r.Get("/findById", h.FindByID)
		r.Get("/search", h.Search)
	})

	return r
}
