package server

import (
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/modelrelay/relay/internal/server/middleware"
	v1 "github.com/modelrelay/relay/internal/server/v1"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler())
	s.router.Use(otelgin.Middleware("relay"))

	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/v1")
	{
		chatHandler := v1.NewChatHandler(s.service)
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		modelHandler := v1.NewModelHandler(s.service.Registry())
		api.GET("/models", modelHandler.ListModels)
	}

	admin := s.router.Group("/admin")
	{
		adminHandler := v1.NewAdminHandler(s.service.Registry())
		admin.GET("/providers", adminHandler.ListProviders)
		admin.GET("/providers/:id", adminHandler.GetProvider)
		admin.PATCH("/providers/:id", adminHandler.SetProviderEnabled)
		admin.PUT("/providers/:id/models", adminHandler.ReplaceModels)
		admin.POST("/providers/:id/models", adminHandler.AppendModels)
		admin.PATCH("/providers/:id/models/:model", adminHandler.SetModelEnabled)

		if s.usage != nil {
			usageHandler := v1.NewUsageHandler(s.usage)
			admin.GET("/usage", usageHandler.RecentUsage)
			admin.GET("/usage/daily", usageHandler.DailyUsage)
		}
	}
}
