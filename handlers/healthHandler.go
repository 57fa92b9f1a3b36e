package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks    map[string]HealthCheck
	poolStats func() *redis.PoolStats
	timeout   time.Duration
	logger    *zap.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, poolStats func() *redis.PoolStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, poolStats: poolStats, timeout: 2 * time.Second, logger: logger}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	components := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			components[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "up"
	}

	body := gin.H{"status": "ok", "components": components}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.poolStats != nil {
		if stats := h.poolStats(); stats != nil {
			body["redisPool"] = gin.H{
				"hits":       stats.Hits,
				"misses":     stats.Misses,
				"timeouts":   stats.Timeouts,
				"totalConns": stats.TotalConns,
				"idleConns":  stats.IdleConns,
			}
		}
	}
	c.JSON(status, body)
}
