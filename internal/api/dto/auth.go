package dto

import "github.com/hugh/pipedesk/internal/auth"

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
	Name     string `json:"name" validate:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileResponse is the body of GET /api/auth/me.
type ProfileResponse struct {
	User *auth.Profile `json:"user"`
}
