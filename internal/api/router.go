// Package api assembles the HTTP surface of the slideshow server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/photo-slideshow/internal/api/handlers"
	"github.com/pysugar/photo-slideshow/internal/api/middleware"
	"github.com/pysugar/photo-slideshow/internal/auth/flow"
	"github.com/pysugar/photo-slideshow/internal/auth/token"
	"github.com/pysugar/photo-slideshow/internal/logging"
	"github.com/pysugar/photo-slideshow/internal/metrics"
	"github.com/pysugar/photo-slideshow/internal/slideshow"
)

// Deps is everything the routes need.
type Deps struct {
	Auth          handlers.Authenticator
	Flows         *flow.Store
	Tokens        *token.Manager
	Service       *slideshow.Service
	Settings      *handlers.Settings
	Metrics       *metrics.Metrics
	Limiter       *middleware.RateLimiter
	AdminPassword string
}

// NewRouter wires the routes. A nil Limiter disables rate limiting.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	adminAuth := middleware.AdminAuth(d.AdminPassword)

	r.Get("/", handlers.PlayerHandler())
	r.Get("/auth/callback", handlers.CallbackHandler(d.Auth, d.Flows, d.Tokens))
	r.With(adminAuth).Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(adminAuth)
		if d.Limiter != nil {
			r.Use(d.Limiter.Handler)
		}

		// Accounts and login
		r.Get("/accounts", handlers.AccountsHandler(d.Service))
		r.Post("/auth/start", handlers.StartAuthHandler(d.Auth, d.Flows))
		r.Get("/auth/check/{id}", handlers.CheckAuthHandler(d.Auth, d.Flows, d.Tokens))
		r.Delete("/auth/remove/{id}", handlers.RemoveAccountHandler(d.Tokens))

		// Listings
		r.Get("/photos/{id}", handlers.PhotosHandler(d.Service))
		r.Get("/albums/{id}", handlers.AlbumsHandler(d.Service))

		r.Get("/settings", handlers.SettingsHandler(d.Settings))
		r.Post("/settings", handlers.SettingsHandler(d.Settings))
		r.Get("/version", handlers.VersionHandler())
	})

	return r
}
