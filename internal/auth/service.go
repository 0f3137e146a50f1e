package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
)

var (
	ErrUserNotFound       = apperr.NotFound("User not found")
	ErrUserExists         = apperr.Conflict("Email already registered")
	ErrInvalidCredentials = apperr.Unauthenticated("Invalid credentials")
	ErrSessionRevoked     = apperr.Unauthenticated("Session has been revoked")
)

type Service struct {
	store    *store.Store
	jwt      *JWTService
	sessions SessionStore
	orgs     OrganizationCreator
	logger   *slog.Logger
}

func NewService(st *store.Store, jwt *JWTService, sessions SessionStore, orgs OrganizationCreator, logger *slog.Logger) *Service {
	return &Service{store: st, jwt: jwt, sessions: sessions, orgs: orgs, logger: logger}
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Profile is the signed-in user with every organization they belong to.
type Profile struct {
	*models.User
	Organizations []store.OrganizationWithRole `json:"organizations"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates the account and then, best effort, a default organization
// owned by the new user. A failed organization does not fail the signup.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*AuthResponse, error) {
	email := normalizeEmail(input.Email)

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(input.Name),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// A concurrent signup can win between the lookup and the insert.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if s.orgs != nil {
		if _, err := s.orgs.Create(ctx, user.ID, user.Name+"'s Organization"); err != nil {
			s.logger.Error("default organization not created", "user_id", user.ID, "error", err)
		}
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

// Logout revokes the session until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.SessionID() == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, claims.SessionID(), claims.ExpiresAtTime())
}

// Authenticate validates a session token and rejects revoked sessions.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	orgs, err := s.store.ListOrganizationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	return &Profile{User: user, Organizations: orgs}, nil
}
