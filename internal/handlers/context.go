package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vigil-app/vigil/internal/middleware"
	"github.com/vigil-app/vigil/pkg/errors"
	"github.com/vigil-app/vigil/pkg/response"
)

// currentUserID returns the authenticated user id from the request context,
// writing a 401 response when it is absent.
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
