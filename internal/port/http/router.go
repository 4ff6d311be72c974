package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	MetricsHandler http.Handler
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(h.log, h.metrics))
	r.Use(chimw.Recoverer)

	r.Get("/health", h.Health)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(Authenticate(cfg.JWTSecret, h.log))

		r.Get("/ws/search", h.SearchSocket(newUpgrader(cfg.AllowedOrigins)))

		r.Route("/api", func(r chi.Router) {
			r.Get("/products", h.SearchProducts)
			r.Post("/products/batch", h.BatchProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Get("/products/{id}/price-history", h.PriceHistory)
			r.Get("/categories", h.Categories)

			r.Group(func(r chi.Router) {
				r.Use(WithSession(h.sessions))

				r.Get("/cart", h.GetCart)
				r.Delete("/cart", h.ClearCart)
				r.Post("/cart/items", h.AddToCart)
				r.Patch("/cart/items/{id}", h.UpdateCartItem)
				r.Delete("/cart/items/{id}", h.RemoveCartItem)

				r.Get("/favorites", h.GetFavorites)
				r.Post("/favorites/{id}/toggle", h.ToggleFavorite)
				r.Put("/favorites/{id}", h.AddFavorite)
				r.Delete("/favorites/{id}", h.RemoveFavorite)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)

				r.Get("/alerts", h.ListAlerts)
				r.Post("/alerts", h.CreateAlert)
				r.Delete("/alerts/{id}", h.DeleteAlert)
			})
		})
	})
	return r
}
