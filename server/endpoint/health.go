package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/version"
)

// HealthChecker returns health status for the service's dependencies.
type HealthChecker func(ctx context.Context) []observability.Health

// Health returns a handler that reports service health including component
// statuses. Dependencies are never critical: a down backend degrades the
// service, which stays at 200 because routing works around it.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.NewServiceHealth(serviceName, version.Version)
		if checker != nil {
			for _, ch := range checker(c.Request.Context()) {
				sh.AddComponent(ch, false)
			}
		}

		httpStatus := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":     sh.Status,
			"service":    sh.Service,
			"version":    sh.Version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": sh.Components,
		})
	}
}
