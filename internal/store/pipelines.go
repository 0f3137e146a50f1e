package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	return s.conn(ctx).Create(p).Error
}

func (s *Store) GetPipeline(ctx context.Context, orgID, id uuid.UUID) (*models.Pipeline, error) {
	var p models.Pipeline
	if err := s.conn(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListPipelines returns pipelines oldest first.
func (s *Store) ListPipelines(ctx context.Context, orgID uuid.UUID) ([]models.Pipeline, error) {
	var out []models.Pipeline
	err := s.conn(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) CountPipelines(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Pipeline{}).Where("organization_id = ?", orgID).Count(&n).Error
	return n, err
}

func (s *Store) UpdatePipeline(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (*models.Pipeline, error) {
	if err := requireAffected(s.conn(ctx).Model(&models.Pipeline{}).
		Where("organization_id = ? AND id = ?", orgID, id).
		Updates(fields)); err != nil {
		return nil, err
	}
	return s.GetPipeline(ctx, orgID, id)
}

// DeletePipeline removes the pipeline and everything under it. Children go
// first so no live parent ever points at a missing child.
func (s *Store) DeletePipeline(ctx context.Context, orgID, id uuid.UUID) error {
	return s.Tx(ctx, func(tx *Store) error {
		if _, err := tx.GetPipeline(ctx, orgID, id); err != nil {
			return err
		}

		var stageIDs []uuid.UUID
		if err := tx.db.Model(&models.Stage{}).
			Where("organization_id = ? AND pipeline_id = ?", orgID, id).
			Pluck("id", &stageIDs).Error; err != nil {
			return err
		}
		if err := tx.deleteStagesCascade(orgID, stageIDs); err != nil {
			return err
		}

		return tx.db.Where("organization_id = ? AND id = ?", orgID, id).Delete(&models.Pipeline{}).Error
	})
}

func (s *Store) deleteStagesCascade(orgID uuid.UUID, stageIDs []uuid.UUID) error {
	if len(stageIDs) == 0 {
		return nil
	}

	var leadIDs []uuid.UUID
	if err := s.db.Model(&models.Lead{}).
		Where("organization_id = ? AND stage_id IN ?", orgID, stageIDs).
		Pluck("id", &leadIDs).Error; err != nil {
		return err
	}
	if err := s.deleteLeadsCascade(orgID, leadIDs); err != nil {
		return err
	}

	return s.db.Where("organization_id = ? AND id IN ?", orgID, stageIDs).Delete(&models.Stage{}).Error
}

func (s *Store) deleteLeadsCascade(orgID uuid.UUID, leadIDs []uuid.UUID) error {
	if len(leadIDs) == 0 {
		return nil
	}

	if err := s.db.Where("organization_id = ? AND lead_id IN ?", orgID, leadIDs).
		Delete(&models.LeadComment{}).Error; err != nil {
		return err
	}

	return s.db.Where("organization_id = ? AND id IN ?", orgID, leadIDs).Delete(&models.Lead{}).Error
}
