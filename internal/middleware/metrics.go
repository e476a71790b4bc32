package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studymate/studyplan-api/internal/service"
)

// Metrics records latency and status per route. Unmatched routes fall
// back to the raw path so 404s stay visible without exploding label
// cardinality on matched ones.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
