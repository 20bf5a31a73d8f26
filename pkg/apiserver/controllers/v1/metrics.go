package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/sentinelhq/sentinel/pkg/metrics"
)

// PrometheusMiddleware counts requests per route template.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(gctx *gin.Context) {
		route := gctx.FullPath()
		if route == "" {
			route = "unknown"
		}

		metrics.APIRouteHits.WithLabelValues(route, gctx.Request.Method).Inc()
		gctx.Next()
	}
}
