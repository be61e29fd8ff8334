package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matchbook/internal/handlers"
	"matchbook/internal/recordstore"
	"matchbook/internal/reindex"
	"matchbook/internal/searchindex"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB      *sql.DB
	Store   recordstore.Store
	Index   searchindex.Index
	Sweeper *reindex.Sweeper
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	profileHandler := handlers.NewProfileHandler(deps.Store)
	pageHandler := handlers.NewPageHandler(deps.Store)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.DB, deps.Index))

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", profileHandler.Save)
			r.Get("/", profileHandler.List)
			r.Post("/search", profileHandler.Search)
			r.Get("/{id}", profileHandler.Get)
			r.Put("/{id}", profileHandler.Save)
			r.Delete("/{id}", profileHandler.Delete)
			r.Method(http.MethodGet, "/{id}/page", pageHandler)
		})

		r.Method(http.MethodPost, "/reindex", handlers.NewReindexHandler(deps.Sweeper))
	})

	return r
}
