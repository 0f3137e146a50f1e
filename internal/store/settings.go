package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"gorm.io/gorm/clause"
)

// UpsertSetting overwrites any existing value stored under the same key.
func (s *Store) UpsertSetting(ctx context.Context, setting *models.Setting) error {
	setting.UpdatedAt = time.Now()
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(setting).Error
}

func (s *Store) GetSetting(ctx context.Context, orgID uuid.UUID, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.conn(ctx).
		Where("organization_id = ? AND key = ?", orgID, key).
		First(&setting).Error; err != nil {
		return nil, translate(err)
	}
	return &setting, nil
}

func (s *Store) ListSettings(ctx context.Context, orgID uuid.UUID) ([]models.Setting, error) {
	var settings []models.Setting
	err := s.conn(ctx).
		Where("organization_id = ?", orgID).
		Order("key ASC").
		Find(&settings).Error
	return settings, err
}

func (s *Store) DeleteSetting(ctx context.Context, orgID uuid.UUID, key string) error {
	return requireAffected(s.conn(ctx).
		Where("organization_id = ? AND key = ?", orgID, key).
		Delete(&models.Setting{}))
}
