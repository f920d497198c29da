package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vigil-app/vigil/internal/handlers"
)

func registerDeviceRoutes(api *gin.RouterGroup, handler *handlers.DeviceHandler) {
	group := api.Group("/devices")
	{
		group.POST("/:code/subscription", handler.Subscribe)
		group.DELETE("/:code/subscription", handler.Unsubscribe)
		group.GET("/:code/qr", handler.QR)
	}
}
