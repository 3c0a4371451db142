package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-username/click-lite-discover/internal/auth"
)

// RouterConfig collects what the API routes are served from
type RouterConfig struct {
	Discover      *DiscoverHandler
	Authenticator *auth.Authenticator
	Health        http.HandlerFunc
	Session       http.HandlerFunc
}

// Routes mounts the API under /api/v1 of r
func Routes(r chi.Router, cfg RouterConfig) {
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Health != nil {
			r.Get("/health", cfg.Health)
		}
		r.Handle("/metrics", promhttp.Handler())

		r.Route("/organizations/{org}/discover", func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Authenticator))

			if cfg.Session != nil {
				r.HandleFunc("/ws", cfg.Session)
			}

			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))

				r.Get("/columns", cfg.Discover.Columns)
				r.Post("/query", cfg.Discover.Query)
				r.Post("/export", cfg.Discover.Export)

				r.Route("/saved", func(r chi.Router) {
					r.Get("/", cfg.Discover.ListSavedQueries)
					r.Post("/", cfg.Discover.CreateSavedQuery)
					r.Get("/{id}", cfg.Discover.GetSavedQuery)
					r.Put("/{id}", cfg.Discover.UpdateSavedQuery)
					r.Delete("/{id}", cfg.Discover.DeleteSavedQuery)
				})
			})
		})
	})
}
