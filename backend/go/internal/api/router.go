package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 /api/v1 路由。
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	if api.jwtSecret != "" {
		v1.Use(AuthMiddleware(api.jwtSecret))
	}

	messages := v1.Group("/messages")
	messages.Use(RateLimitMiddleware(api.limiter))
	{
		messages.POST("", api.ProcessMessageHandler)
	}

	subs := v1.Group("/subscriptions")
	{
		subs.POST("", api.SubscribeHandler)
		subs.GET("/:platform/:user", api.SubscriptionStatusHandler)
		subs.DELETE("/:platform/:user", api.UnsubscribeHandler)
	}
	v1.POST("/reports/:platform/:user", api.ManualReportHandler)

	tasks := v1.Group("/tasks")
	{
		tasks.GET("", api.AvailableTasksHandler)
		tasks.POST("/:type/validate", api.ValidateTaskHandler)
		tasks.POST("/:type/execute", api.ExecuteTaskHandler)
	}
	v1.POST("/batch", api.BatchExecuteHandler)

	v1.GET("/history/:user", api.HistoryHandler)
	v1.POST("/history/cleanup", api.CleanupHistoryHandler)
	v1.GET("/executions/:id", api.ExecutionStatusHandler)
	v1.GET("/stats", api.StatisticsHandler)

	v1.GET("/suggestions/:user", api.SuggestionsHandler)
	v1.GET("/users/:user/stats", api.UserStatsHandler)
	v1.DELETE("/users/:user/context", api.ClearContextHandler)
}
