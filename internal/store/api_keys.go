package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	return s.conn(ctx).Create(key).Error
}

func (s *Store) ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := s.conn(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	if err := s.conn(ctx).Where("secret_hash = ?", hash).First(&key).Error; err != nil {
		return nil, translate(err)
	}
	return &key, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, orgID, id uuid.UUID) error {
	return requireAffected(s.conn(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		Delete(&models.APIKey{}))
}

func (s *Store) TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.conn(ctx).Model(&models.APIKey{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}
