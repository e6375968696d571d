package middleware

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/infrastructure/metrics"
)

// Metrics records request count, latency and in-flight requests.
// The matched route template is used as label to keep cardinality low.
func Metrics(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.Start()
		defer func() {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			done(c.Request.Method, route, c.Writer.Status())
		}()

		c.Next()
	}
}
