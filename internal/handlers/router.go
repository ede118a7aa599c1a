package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gianverdum/member-registry/internal/middleware"
	"github.com/gianverdum/member-registry/internal/monitoring"
	"github.com/gianverdum/member-registry/internal/utils"
)

// RouterConfig holds everything the HTTP surface is built from
type RouterConfig struct {
	Members     *MemberHandler
	Health      *HealthHandler
	Metrics     *monitoring.Metrics // nil disables /metrics and HTTP instruments
	CORS        middleware.CORSConfig
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
}

// NewRouter wires the middleware chain and every route
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORS))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}
	r.Use(cfg.Metrics.HTTPMetricsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", Welcome)
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.Members != nil {
		r.Route("/members", cfg.Members.Routes)
	}

	return r
}
