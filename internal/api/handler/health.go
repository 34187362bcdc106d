package handler

import (
	"net/http"
	"time"

	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/certops/certbot-ui/internal/cache"
	"github.com/certops/certbot-ui/internal/certbot"
	"github.com/certops/certbot-ui/internal/store"
)

// HealthHandler serves liveness and dependency health.
type HealthHandler struct {
	store   store.Store
	cache   cache.Cache
	svc     *certbot.Service
	started time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(s store.Store, c cache.Cache, svc *certbot.Service) *HealthHandler {
	return &HealthHandler{store: s, cache: c, svc: svc, started: time.Now()}
}

// Health handles GET /api/health: process liveness plus database and cache
// reachability.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	healthy := true

	if err := h.store.Ping(r.Context()); err != nil {
		checks["database"] = "unreachable"
		healthy = false
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		checks["cache"] = "unreachable"
		healthy = false
	}

	if !healthy {
		response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "One or more dependencies are unreachable", checks)
		return
	}
	response.JSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"services":       checks,
	})
}

// Certbot handles GET /api/health/certbot, verifying the certbot binary is
// present and runnable.
func (h *HealthHandler) Certbot(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.Version(r.Context())
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable,
			"CERTBOT_UNAVAILABLE", "certbot binary is not available", nil)
		return
	}
	response.JSON(w, map[string]string{"status": "ok", "version": version})
}
