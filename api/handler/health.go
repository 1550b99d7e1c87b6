package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionStats reports browser session utilisation.
type SessionStats interface {
	Stats() (active, maxSessions int)
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when more than 80% of sessions are in use.
func Health(stats SessionStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, maxSessions := stats.Stats()

		status := "healthy"
		if maxSessions > 0 && active > int(float64(maxSessions)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSessions: active,
			MaxSessions:    maxSessions,
			Version:        Version,
		})
	}
}
