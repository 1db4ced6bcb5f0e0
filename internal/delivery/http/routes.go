package http

import (
	"github.com/gin-gonic/gin"

	"github.com/smarties/backend/config"
	"github.com/smarties/backend/internal/pkg/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *logger.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		analysis := v1.Group("/analysis")
		{
			analysis.POST("/analyze", handler.Analyze)
			analysis.POST("/family", handler.AnalyzeFamily)
		}

		cache := v1.Group("/cache")
		{
			cache.POST("/invalidate/:code", handler.InvalidateCache)
		}
	}

	return router
}
