package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/api/handlers"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/metrics"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/monitor"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/store"
)

// SetupRouter builds the gin engine with the read API, the manual
// trigger, health and Prometheus endpoints.
func SetupRouter(m *monitor.Monitor, s *store.Store, corsOrigins string) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow configured origins or use defaults
	config := cors.DefaultConfig()
	if corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.AllowCredentials = false
	router.Use(cors.New(config))
	router.Use(metricsMiddleware())

	progressHandler := handlers.NewProgressHandler(m, s)

	api := router.Group("/api")
	{
		progress := api.Group("/progress")
		{
			progress.GET("/latest", progressHandler.GetLatest)
			progress.GET("/history", progressHandler.GetHistory)
			progress.GET("/stats", progressHandler.GetStats)
			progress.POST("/refresh", progressHandler.Refresh)
		}
	}

	router.GET("/health", progressHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// metricsMiddleware records request counts and latencies per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}
