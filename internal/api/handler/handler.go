// Package handler provides HTTP handlers for all API endpoints. Handlers
// depend on small interfaces over the store and the scheduling core so they
// stay testable without Postgres.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/clubsync/notifier/internal/api/respond"
	"github.com/clubsync/notifier/internal/cache"
	"github.com/clubsync/notifier/internal/config"
	"github.com/clubsync/notifier/internal/notification"
	"github.com/clubsync/notifier/internal/scheduler"
)

// Store is the notification CRUD surface the handlers need.
type Store interface {
	Get(ctx context.Context, id string) (notification.Notification, error)
	Put(ctx context.Context, n notification.Notification) error
}

// Scheduler is the scheduling-core surface the handlers need.
type Scheduler interface {
	Register(n notification.Notification) error
	HandleTriggerEvent(ctx context.Context, ev scheduler.TriggerEvent)
	Stats() map[string]interface{}
}

// Pinger verifies database connectivity for health checks.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store Store
	sched Scheduler
	db    Pinger
	cache *cache.Cache
	cfg   *config.Config
}

// New creates a Handler with shared dependencies.
func New(store Store, sched Scheduler, db Pinger, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{store: store, sched: sched, db: db, cache: c, cfg: cfg}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Clubsync Notifier API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckScheduler returns scheduling registry and cache statistics.
// @Summary Scheduler health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/scheduler [get]
func (h *Handler) HealthCheckScheduler(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"scheduler": h.sched.Stats(),
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
