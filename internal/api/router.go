package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is the liveness surface of the task store used by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter assembles the gin engine with the API routes, the health check
// and the Prometheus metrics endpoint.
func NewRouter(log *slog.Logger, svc Service, db Pinger, reg *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handler := NewHandler(log, svc)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/calculateDistances", handler.CalculateDistances)
		apiGroup.GET("/getResult/:upload_uuid", handler.GetResult)
		apiGroup.POST("/runtime", handler.Runtime)
	}

	router.GET("/healthcheck", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			log.ErrorContext(c.Request.Context(), "Health check failed", "error", err)
			c.String(http.StatusServiceUnavailable, "DB ping failed")
			return
		}
		c.String(http.StatusOK, "OK")
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}
