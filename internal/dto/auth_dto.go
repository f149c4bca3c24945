package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email          string `json:"email" validate:"required"`
	Password       string `json:"password" validate:"required,min=6"`
	PasswordRepeat string `json:"password_repeat" validate:"required"`
}

type RegisterResponse struct {
	Id    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	SessionToken string    `json:"session_token"`
	SessionId    string    `json:"session_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at"`
}
