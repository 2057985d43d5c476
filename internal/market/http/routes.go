package markethttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the distribution endpoints. Guards wrap the routes
// that accept listing uploads.
func (h *Handler) MountRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	if h == nil {
		return
	}
	r.Get("/weights", h.handleWeights)
	r.Group(func(gr chi.Router) {
		for _, guard := range guards {
			if guard != nil {
				gr.Use(guard)
			}
		}
		gr.Post("/distributions", h.handleDistributions)
		gr.Post("/distributions/export", h.handleExport)
	})
}
