package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/ratelimit"
)

// Routes builds the full chi router per spec.md §6's HTTP surface table.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.Config.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Unauthenticated, also exempt from rate limiting per spec.md §4.9.
	r.Get("/", s.Root)
	r.Get("/healthcheck", s.Healthcheck)
	r.Post("/auth/signup", s.Signup)
	r.Post("/auth/login", s.Login)

	rateLimitCfg := ratelimit.Config{
		MaxRequests: s.Config.RateLimitRequests,
		Window:      s.Config.RateLimitWindow(),
		Burst:       s.Config.RateLimitRequests,
	}
	rateLimited := ratelimit.Middleware(s.Limiter, rateLimitCfg, identityKeyFunc)

	r.Group(func(r chi.Router) {
		// Resolver must run first: rateLimited's identityKeyFunc keys on the
		// resolved identity, so rate limiting has to see auth's output, not
		// the other way around.
		r.Use(s.Resolver.Middleware)
		r.Use(rateLimited)

		r.Get("/auth/me", s.Me)
		r.Patch("/auth/me", s.Me)
		r.Delete("/auth/me", s.Me)

		r.Get("/topics", s.ListTopics)
		r.Post("/topics/{name}/publish", s.Publish)
		r.Get("/topics/{name}/stream", s.Stream)
		r.Get("/usage", s.Usage)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer)

			r.Get("/api-keys", s.ListAPIKeys)
			r.Post("/api-keys", s.CreateAPIKey)
			r.Delete("/api-keys/{id}", s.DeleteAPIKey)

			r.Get("/projects", s.ListProjects)
			r.Post("/projects", s.CreateProject)
			r.Patch("/projects/{id}", s.RenameProject)
			r.Delete("/projects/{id}", s.DeleteProject)

			r.Get("/usage/projects", s.UsageProjects)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.AdminAuthMiddleware)
		r.Get("/admin/active-streams", s.AdminActiveStreams)
	})

	return r
}
