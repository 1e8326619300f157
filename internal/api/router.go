package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

type RouterConfig struct {
	AllowedOrigins []string
	CacheTTL       time.Duration
	// RateLimit is requests per second across all clients.
	RateLimit      float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// NewRouter mounts the handlers under /api/v1 plus /health. Read endpoints
// are cached for CacheTTL when it is positive.
func NewRouter(h *Handlers, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateLimitBurst < 1 {
		cfg.RateLimitBurst = 20
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(limiter, logger))

		r.Group(func(r chi.Router) {
			if cfg.CacheTTL > 0 {
				r.Use(NewResponseCache(cfg.CacheTTL).Middleware)
			}

			r.Get("/trades", h.ListTrades)
			r.Get("/trades/{id}", h.GetTrade)
			r.Get("/politicians", h.ListPoliticians)
			r.Get("/politicians/{country}/{name}", h.GetPolitician)
			r.Get("/countries", h.ListCountries)
			r.Get("/countries/regions", h.ListRegions)
		})

		r.Get("/scrapers", h.ListScrapers)
		r.Post("/scrape", h.ScrapeAll)
		r.Post("/scrape/{country}", h.ScrapeCountry)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{jobID}", h.GetJob)
	})

	return r
}
