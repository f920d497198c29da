package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vigil-app/vigil/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/stream", handler.Stream)
		group.GET("/ws", handler.StreamWS)

		group.POST("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
}
