// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"docjournal/internal/infrastructure/storage/postgres"
)

// DBProbe is what the health endpoints need from the database.
type DBProbe interface {
	Ping(ctx context.Context) error
	SchemaReady(ctx context.Context) (bool, error)
	Stats() postgres.PoolStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      DBProbe
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db DBProbe, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe: the database answers and carries the schema.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	ready, err := h.db.SchemaReady(ctx)
	if err != nil || !ready {
		msg := "schema not provisioned"
		if err != nil {
			msg = "unhealthy: " + err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "healthy",
				"schema":   msg,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
			"schema":   "ready",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stat := h.db.Stats()

	c.JSON(http.StatusOK, gin.H{
		"app":     "docjournal",
		"version": h.version,
		"database": map[string]any{
			"total_conns":    stat.TotalConns,
			"acquired_conns": stat.AcquiredConns,
			"idle_conns":     stat.IdleConns,
			"max_conns":      stat.MaxConns,
		},
	})
}
