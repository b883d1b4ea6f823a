package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Ingestion endpoints.
		r.Group(func(r chi.Router) {
			if s.cfg.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit))
			}

			r.Post("/ingest/{kind}", s.handleIngest)
		})

		// Snapshot endpoints.
		r.Get("/costs", s.handleListCosts)
		r.Get("/findings", s.handleListFindings)
		r.Get("/bench/runs", s.handleListRuns)
		r.Get("/bench/tx", s.handleListTransactions)
		r.Get("/bench/validation", s.handleBenchValidation)

		// Knowledge base.
		r.Get("/kb", s.handleListKB)
		r.Get("/kb/{id}", s.handleLookupKB)

		// Admin endpoints, destructive.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireBasicAuth)

			r.Post("/clear", s.handleClear)
			r.Post("/reset", s.handleReset)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
