package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"slackpost/internal/http/handlers"
	"slackpost/internal/http/middleware"
	"slackpost/internal/metrics"
)

type RouterDependencies struct {
	Logger        *slog.Logger
	HealthHandler *handlers.HealthHandler
	SlackHandler  *handlers.SlackHandler
	// Metrics is optional; /metrics is only mounted when it is set.
	Metrics *metrics.Metrics
}

func NewRouter(deps RouterDependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))

	r.GET("/healthz", deps.HealthHandler.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/messages", deps.SlackHandler.SendMessage)
		api.POST("/images", deps.SlackHandler.SendImages)
	}

	return r
}
