package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/notebook"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// notebookRoot is used to resolve the assets directory.
func NewRouter(nb *notebook.Notebook, db *index.DB, authEnabled bool, token string, sseHandler http.Handler, notebookRoot string) chi.Router {
	h := NewHandler(nb, db)
	ah := NewAssetHandler(notebookRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Sections and cards.
	r.Get("/sections", h.ListSections)
	r.Get("/sections/{section}/cards", h.ListSectionCards)
	r.Post("/sections/{section}/cards", h.CreateCard)
	r.Get("/sections/{section}/cards/{id}", h.GetCard)
	r.Put("/sections/{section}/cards/{id}", h.UpdateCard)
	r.Delete("/sections/{section}/cards/{id}", h.DeleteCard)

	// Index-backed listing and search.
	r.Get("/cards", h.ListCards)
	r.Get("/search", h.Search)

	// Notebook control.
	r.Post("/reload", h.Reload)
	r.Get("/extensions", h.GetExtensions)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	// Asset upload (auth-protected). Serving lives outside /api.
	r.Post("/assets", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
