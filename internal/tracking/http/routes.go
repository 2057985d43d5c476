package trackinghttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the tracking API. Guards wrap every route that
// writes state.
func (h *Handler) MountRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	if h == nil {
		return
	}
	r.Get("/products/{asin}", h.handleProduct)
	r.Get("/products/{asin}/estimate", h.handleLatestEstimate)
	r.Get("/top-sellers", h.handleTopSellers)
	r.Get("/estimator/boundaries", h.handleBoundaries)
	r.Get("/estimator", h.handleRankEstimate)
	r.Post("/rollup", h.handleRollup)

	r.Group(func(gr chi.Router) {
		for _, guard := range guards {
			if guard != nil {
				gr.Use(guard)
			}
		}
		gr.Post("/observations", h.handleRecord)
		gr.Post("/products/{asin}/estimate", h.handleEstimate)
	})
}
