package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/vigil-app/vigil/internal/auth"
	"github.com/vigil-app/vigil/internal/services"
	"github.com/vigil-app/vigil/pkg/response"
)

// AuthHandler exposes registration and login endpoints.
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService) (*AuthHandler, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{users: users, jwt: jwt}, nil
}

// Register creates a new subscriber account.
func (h *AuthHandler) Register(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		Username string `json:"username" validate:"omitempty,max=64"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Email:    payload.Email,
		Password: payload.Password,
		Username: payload.Username,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user": services.UserDTO{
			ID:        user.ID,
			Email:     user.Email,
			Username:  user.Username,
			CreatedAt: user.CreatedAt,
		},
	})
}
