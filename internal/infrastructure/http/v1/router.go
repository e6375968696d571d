// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/registry"
	"docjournal/internal/domain/reservation"
	"docjournal/internal/infrastructure/http/v1/handlers"
	"docjournal/internal/infrastructure/http/v1/middleware"
	"docjournal/internal/infrastructure/metrics"
	"docjournal/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Reservations is the reservation engine
	Reservations *reservation.Service

	// Registry files documents and manages equipment
	Registry *registry.Service

	// Format renders document numbers in responses
	Format numerator.Config

	// DB backs the readiness probe
	DB handlers.DBProbe

	// Version reported by /health/info
	Version string

	// HTTPMetrics and Gatherer enable request metrics and /metrics when set
	HTTPMetrics *metrics.HTTP
	Gatherer    prometheus.Gatherer
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	if cfg.HTTPMetrics != nil {
		router.Use(middleware.Metrics(cfg.HTTPMetrics))
	}
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	if cfg.DB != nil {
		healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	baseHandler := handlers.NewBaseHandler(cfg.Format)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	{
		RegisterSessionRoutes(v1.Group("/sessions"), handlers.NewSessionHandler(baseHandler, cfg.Reservations))
		RegisterAdminRoutes(v1.Group("/admin"), handlers.NewAdminHandler(baseHandler, cfg.Reservations))

		documentHandler := handlers.NewDocumentHandler(baseHandler, cfg.Registry)
		documents := v1.Group("/documents")
		documents.POST("/assign", documentHandler.Assign)
		documents.GET("/:id", documentHandler.Get)

		equipmentHandler := handlers.NewEquipmentHandler(baseHandler, cfg.Registry)
		equipment := v1.Group("/equipment")
		equipment.POST("", equipmentHandler.Create)
		equipment.GET("/:id", equipmentHandler.Get)
	}

	return router
}
