package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/nolashq/nolas/api/handlers"
	"github.com/nolashq/nolas/api/middleware"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/repository"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/services"
)

// RegisterRoutes sets up all API endpoints.
func RegisterRoutes(r *gin.Engine, s *services.Services, repos *repository.Repositories, log logger.Logger) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	h := handlers.InitHandlers(repos, s, log)

	r.GET("/health", handlers.HealthCheck)

	v3 := r.Group("/v3")
	v3.Use(middleware.BearerAuth(repos.AppRepository))
	v3.Use(middleware.Tracing())
	{
		connect := v3.Group("/connect")
		{
			connect.GET("/auth", h.Connect.AuthorizeForm)
			connect.POST("/auth", h.Connect.AuthorizeForm)
			connect.POST("/process", h.Connect.Process)
			connect.POST("/token", h.Connect.Token)
		}

		grants := v3.Group("/grants")
		{
			grants.DELETE("/:grant_id", h.Grants.Delete)

			grants.GET("/:grant_id/messages", h.Messages.List)
			grants.GET("/:grant_id/messages/:message_id", h.Messages.Get)
			grants.POST("/:grant_id/messages/send", h.Messages.Send)

			grants.GET("/:grant_id/attachments/:attachment_id", h.Attachments.Get)
			grants.GET("/:grant_id/attachments/:attachment_id/download", h.Attachments.Download)

			grants.GET("/:grant_id/folders", h.Folders.List)
			grants.GET("/:grant_id/folders/:folder_id", h.Folders.Get)

			grants.POST("/:grant_id/webhooks/test", h.Webhooks.SendTest)
		}
	}
}
