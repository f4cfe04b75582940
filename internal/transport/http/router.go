// Package httptransport is the ambient admin surface: health, readiness,
// and metrics only. The create/list/delete HTTP API for templates,
// hosts, credentials, and jobs lives outside the core engine and is
// not served here.
package httptransport

import (
	"net/http"

	"github.com/fleetrun/fleetrun/internal/health"
	"github.com/fleetrun/fleetrun/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(checker *health.Checker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		result := checker.Liveness(c.Request.Context())
		c.JSON(http.StatusOK, result)
	})

	r.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
