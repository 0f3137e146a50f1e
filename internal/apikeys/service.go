// Package apikeys issues and verifies organization API keys.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
	"github.com/hugh/pipedesk/pkg/crypto"
)

// Prefix marks every secret issued by this service.
const Prefix = "pdk_"

const secretLength = 40

var (
	ErrNameRequired  = apperr.Validation("API key name is required")
	ErrKeyNotFound   = apperr.NotFound("API key not found")
	ErrInvalidAPIKey = apperr.Unauthenticated("Invalid API key")
)

type Service struct {
	store  *store.Store
	audit  *audit.Recorder
	logger *slog.Logger
}

func NewService(st *store.Store, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{store: st, audit: recorder, logger: logger}
}

// Created is returned once, by Create. KeyValue never appears again.
type Created struct {
	Key      *models.APIKey `json:"key"`
	KeyValue string         `json:"keyValue"`
}

func (s *Service) Create(ctx context.Context, p *access.Principal, name string) (*Created, error) {
	if err := p.Require(access.ResourceAPIKeys, access.ActionCreate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	token, err := crypto.GenerateToken(secretLength)
	if err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	secret := Prefix + token

	key := &models.APIKey{
		OrganizationID: p.OrganizationID,
		Name:           name,
		SecretHash:     crypto.HashToken(secret),
		Preview:        preview(secret),
		CreatedBy:      p.UserID,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("storing api key: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionCreate,
		Entity:         audit.EntityAPIKey,
		EntityID:       key.ID.String(),
		Metadata:       map[string]any{"name": key.Name, "preview": key.Preview},
	})

	return &Created{Key: key, KeyValue: secret}, nil
}

func (s *Service) List(ctx context.Context, p *access.Principal) ([]models.APIKey, error) {
	if err := p.Require(access.ResourceAPIKeys, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListAPIKeys(ctx, p.OrganizationID)
}

func (s *Service) Delete(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := p.Require(access.ResourceAPIKeys, access.ActionDelete); err != nil {
		return err
	}
	if err := s.store.DeleteAPIKey(ctx, p.OrganizationID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntityAPIKey,
		EntityID:       id.String(),
	})
	return nil
}

// Authenticate resolves a plaintext secret to its key and stamps lastUsedAt.
func (s *Service) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	if !strings.HasPrefix(secret, Prefix) {
		return nil, ErrInvalidAPIKey
	}

	key, err := s.store.GetAPIKeyByHash(ctx, crypto.HashToken(secret))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}

	now := time.Now()
	if err := s.store.TouchAPIKey(ctx, key.ID, now); err != nil {
		s.logger.Warn("failed to update api key last use", "key_id", key.ID, "error", err)
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

// preview keeps the prefix and the first and last four characters of the
// random part; the rest of the secret is never stored.
func preview(secret string) string {
	body := strings.TrimPrefix(secret, Prefix)
	return Prefix + body[:4] + "..." + body[len(body)-4:]
}
