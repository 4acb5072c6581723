package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/middleware"
)

func NewRouter(h *Handler, logger *log.Logger, corsAllowOrigins []string, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(corsAllowOrigins))

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.DeviceID)
		r.Use(middleware.Identity(jwtSecret))

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{id}", h.SetQuantity)
			r.Delete("/items/{id}", h.RemoveItem)
			r.Post("/hydrate", h.Hydrate)
			r.Post("/signin", h.SignIn)
			r.Post("/signout", h.SignOut)
			r.Post("/sync", h.Sync)
		})
		r.Post("/api/checkout", h.Checkout)
	})

	return r
}
