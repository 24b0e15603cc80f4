package auth

import (
	"time"

	"roombooking/internal/domain"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	FullName string `json:"full_name" binding:"required,max=50"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name" binding:"omitempty,min=1,max=50"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=100"`
}

// AuthResult is returned by every call that issues a token.
type AuthResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}
