package middleware

import (
	"context"
	"slices"

	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are request paths served without labels, such as health checks
	SkipPaths []string
}

// Profiling attaches method, route and collection labels to every profile
// sample taken while the request runs, so profiles can be filtered by
// endpoint. Unmatched routes are not labelled.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		labels := telemetry.HTTPRequestLabels(c.Request.Method, route, routeCollection(route))
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
