// Package api wires the HTTP routes.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/handlers"
	"github.com/pratamalabs/domaindesk/internal/logger"
)

// NewRouter builds the gin engine with all routes attached. registry may be
// nil to skip the metrics endpoint.
func NewRouter(
	cfg *config.Config,
	domainHandler *handlers.DomainHandler,
	syncHandler *handlers.SyncHandler,
	registry *prometheus.Registry,
	log logger.Logger,
) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(log))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if registry != nil {
		router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		domains := v1.Group("/domains")
		{
			domains.GET("", domainHandler.List)
			domains.GET("/used-names", domainHandler.UsedNames)
			domains.POST("/mark-used", domainHandler.MarkUsed)
			domains.GET("/:id", domainHandler.Get)
			domains.PUT("/:id", domainHandler.Update)
			domains.DELETE("/:id", domainHandler.Delete)
			domains.POST("/:id/reactivate", syncHandler.Reactivate)
			domains.POST("/:id/renew", syncHandler.Renew)
			domains.GET("/:id/registrar-info", syncHandler.RegistrarInfo)
		}

		sync := v1.Group("/sync")
		{
			sync.POST("", syncHandler.TriggerAll)
			sync.POST("/registrar", syncHandler.TriggerRegistrar)
			sync.POST("/nameservers", syncHandler.TriggerNameservers)
			sync.POST("/content-filter", syncHandler.TriggerFilter)
			sync.POST("/content-filter/results", syncHandler.ApplyResults)
			sync.GET("/status", syncHandler.Status)
		}
	}

	return router
}

// ginLogger logs each request through the service logger instead of gin's
// default writer.
func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}
