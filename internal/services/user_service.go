package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/models"
	apperrors "github.com/vigil-app/vigil/pkg/errors"
)

var errEmailTaken = apperrors.New("EMAIL_TAKEN", "Email is already registered", http.StatusConflict)

// UserDTO is the API-friendly account representation.
type UserDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// UpdateProfileInput carries optional profile changes; nil fields are untouched.
type UpdateProfileInput struct {
	Email    *string
	Username *string
	Password *string
}

// UserService manages subscriber accounts.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Register creates a new account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Email:    email,
		Username: strings.TrimSpace(input.Username),
		Password: string(hash),
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	dto := mapUser(user)
	return &dto, nil
}

// Authenticate verifies the email/password pair, returning the account on
// success. Unknown email and wrong password are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	return &user, nil
}

// Get returns the account profile.
func (s *UserService) Get(ctx context.Context, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	dto := mapUser(user)
	return &dto, nil
}

// UpdateProfile applies the provided changes to the user's own account.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	updates := map[string]any{}
	if input.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Username != nil {
		updates["username"] = strings.TrimSpace(*input.Username)
	}
	if input.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("user service: hash password: %w", err)
		}
		updates["password"] = string(hash)
	}

	if len(updates) == 0 {
		return nil, apperrors.NewValidation("validation failed", "no updatable field was provided")
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("user service: update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}

	return s.Get(ctx, userID)
}

// DeleteAccount removes the account and, through FK cascade, its subscriptions.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", userID)
	if result.Error != nil {
		return fmt.Errorf("user service: delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func mapUser(user models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}
