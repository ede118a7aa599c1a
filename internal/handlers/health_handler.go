package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/gianverdum/member-registry/internal/cache"
	"github.com/gianverdum/member-registry/internal/database"
	"github.com/gianverdum/member-registry/internal/utils"
)

// WelcomeMessage is returned by GET /
const WelcomeMessage = "Welcome to the members API!"

const healthCheckTimeout = 5 * time.Second

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// ComponentHealth is the state of one dependency. Failure details are
// logged, not returned.
type ComponentHealth struct {
	Status string `json:"status"`
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status   string          `json:"status"`
	Service  string          `json:"service"`
	Database ComponentHealth `json:"database"`
	Cache    ComponentHealth `json:"cache"`
}

// HealthHandler reports whether the service can reach its dependencies
type HealthHandler struct {
	db      *gorm.DB
	cache   cache.MemberCache
	service string
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(db *gorm.DB, c cache.MemberCache, serviceName string) *HealthHandler {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &HealthHandler{db: db, cache: c, service: serviceName}
}

// Welcome handles GET /
func Welcome(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

// Health handles GET /health. Only the database decides the status code;
// a cache outage reports the service as degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Status:   StatusHealthy,
		Service:  h.service,
		Database: ComponentHealth{Status: StatusHealthy},
		Cache:    ComponentHealth{Status: StatusDisabled},
	}

	if h.db == nil {
		slog.Error("Health check failed", "component", "database", "error", "database not configured")
		status.Database.Status = StatusUnhealthy
	} else if err := database.Ping(ctx, h.db, 0); err != nil {
		slog.Error("Health check failed", "component", "database", "error", err)
		status.Database.Status = StatusUnhealthy
	}

	if h.cache.Enabled() {
		status.Cache.Status = StatusHealthy
		if err := h.cache.HealthCheck(ctx); err != nil {
			slog.Warn("Health check degraded", "component", "cache", "error", err)
			status.Cache.Status = StatusDegraded
			status.Status = StatusDegraded
		}
	}

	statusCode := http.StatusOK
	if status.Database.Status != StatusHealthy {
		status.Status = StatusUnhealthy
		statusCode = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, statusCode, status)
}
