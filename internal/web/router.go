package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"

	"github.com/znz-systems/triage/internal/auth"
	"github.com/znz-systems/triage/internal/ratelimit"
	"github.com/znz-systems/triage/internal/web/handlers"
	"github.com/znz-systems/triage/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	AuthHandler         *handlers.AuthHandler
	IMAPHandler         *handlers.IMAPHandler
	EmailHandler        *handlers.EmailHandler
	NotificationHandler *handlers.NotificationHandler
	AuthService         *auth.Service
	Limiter             *ratelimit.Limiter
	Health              healthcheck.Handler
	Metrics             http.Handler
	CORSOrigins         []string
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)

	// Operational endpoints
	r.Get("/live", deps.Health.LiveEndpoint)
	r.Get("/ready", deps.Health.ReadyEndpoint)
	r.Method(http.MethodGet, "/metrics", deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(deps.CORSOrigins))

		// Public auth routes (rate limited)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter, "auth"))

			r.Post("/auth/signup", deps.AuthHandler.HandleSignup)
			r.Post("/auth/login", deps.AuthHandler.HandleLogin)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.AuthService))

			r.Get("/user/me", handlers.HandleMe)
			r.Post("/imap/setup", deps.IMAPHandler.HandleSetup)
			r.With(middleware.RateLimit(deps.Limiter, "sync")).
				Post("/imap/sync", deps.IMAPHandler.HandleSync)

			r.Get("/emails", deps.EmailHandler.HandleList)
			r.Get("/notifications", deps.NotificationHandler.HandleList)
			r.Post("/notifications/{notificationID}/read", deps.NotificationHandler.HandleMarkRead)
		})
	})

	return r
}
