package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Signup(ctx context.Context, input SignupInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	Logout(ctx context.Context, claims *Claims) error
	Authenticate(ctx context.Context, token string) (*Claims, error)
	Me(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionStore records revoked sessions.
type SessionStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// OrganizationCreator creates the default organization on signup.
type OrganizationCreator interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Organization, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
	_ SessionStore  = (*RedisSessionStore)(nil)
	_ SessionStore  = (*MemorySessionStore)(nil)
)
