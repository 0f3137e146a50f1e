package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) CreateComment(ctx context.Context, c *models.LeadComment) error {
	return s.conn(ctx).Create(c).Error
}

func (s *Store) GetComment(ctx context.Context, orgID, leadID, id uuid.UUID) (*models.LeadComment, error) {
	var c models.LeadComment
	if err := s.conn(ctx).
		Where("organization_id = ? AND lead_id = ? AND id = ?", orgID, leadID, id).
		First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListComments returns a lead's comments oldest first.
func (s *Store) ListComments(ctx context.Context, orgID, leadID uuid.UUID) ([]models.LeadComment, error) {
	var out []models.LeadComment
	err := s.conn(ctx).
		Where("organization_id = ? AND lead_id = ?", orgID, leadID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) DeleteComment(ctx context.Context, orgID, leadID, id uuid.UUID) error {
	return requireAffected(s.conn(ctx).
		Where("organization_id = ? AND lead_id = ? AND id = ?", orgID, leadID, id).
		Delete(&models.LeadComment{}))
}
