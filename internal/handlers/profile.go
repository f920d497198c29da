package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/services"
	"github.com/vigil-app/vigil/pkg/response"
)

// ProfileHandler exposes the authenticated user's own account.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) (*ProfileHandler, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &ProfileHandler{users: users}, nil
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	dto, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Update applies profile changes for the caller.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload struct {
		Email    *string `json:"email" validate:"omitempty,email"`
		Username *string `json:"username" validate:"omitempty,max=64"`
		Password *string `json:"password" validate:"omitempty,min=8"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.users.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Delete removes the caller's account.
func (h *ProfileHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.users.DeleteAccount(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
