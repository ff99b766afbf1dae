package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/emis-scheduler-api/internal/service"
)

// Metrics observes request duration and status per route template, so
// /schedule/slots/:id aggregates as one series regardless of the slot id.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
