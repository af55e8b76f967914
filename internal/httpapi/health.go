package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicechat-platform/pkg/logger"
	"voicechat-platform/pkg/utils"
)

// Healthz reports process liveness plus backing-store reachability.
// Stores are optional so the surface stays testable without infrastructure.
func (h *Handlers) Healthz(c *gin.Context) {
	ctx := c.Request.Context()

	if h.db != nil {
		if err := utils.HealthCheck(ctx, h.db, 2*time.Second); err != nil {
			logger.FromGin(c).Error("postgres health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": "down"})
			return
		}
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			logger.FromGin(c).Error("redis health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
