package api

import "github.com/gin-gonic/gin"

import "github.com/vigil-app/vigil/internal/handlers"

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	profile := api.Group("/profile")
	{
		profile.GET("", handler.Get)
		profile.PATCH("", handler.Update)
		profile.DELETE("", handler.Delete)
	}
}
