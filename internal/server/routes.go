package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"flashdeal/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) {
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			// unauthorized zone
			r.Route("/users", func(r chi.Router) {
				r.Post("/", handler(s.postV1User))
			})
			r.Route("/products", func(r chi.Router) {
				r.Post("/", handler(s.postV1Product))
				r.Get("/{id}", handler(s.getV1Product))
			})
			r.Route("/deals", func(r chi.Router) {
				r.Post("/", handler(s.postV1Deal))
				r.Get("/{id}", handler(s.getV1Deal))
				r.Post("/{id}/buy", handler(s.postV1DealBuy))
			})
			r.Route("/admin", func(r chi.Router) {
				r.Post("/deals/deactivate-expired", handler(s.postV1DeactivateExpired))
			})
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, err)
		}
	}
}
