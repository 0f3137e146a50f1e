package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

type LeadFilter struct {
	StageID    *uuid.UUID
	PipelineID *uuid.UUID
}

func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	return s.conn(ctx).Create(lead).Error
}

func (s *Store) GetLead(ctx context.Context, orgID, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := s.conn(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&lead).Error; err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (s *Store) GetLeadByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.conn(ctx).
		Where("organization_id = ? AND external_record_id = ?", orgID, externalID).
		First(&lead).Error; err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

// ListLeads returns the most recently updated leads first.
func (s *Store) ListLeads(ctx context.Context, orgID uuid.UUID, filter LeadFilter) ([]models.Lead, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if filter.StageID != nil {
		q = q.Where("stage_id = ?", *filter.StageID)
	}
	if filter.PipelineID != nil {
		stages := s.conn(ctx).Model(&models.Stage{}).
			Select("id").
			Where("organization_id = ? AND pipeline_id = ?", orgID, *filter.PipelineID)
		q = q.Where("stage_id IN (?)", stages)
	}

	var out []models.Lead
	err := q.Order("updated_at DESC").Find(&out).Error
	return out, err
}

// UpdateLead merges fields and always refreshes updated_at.
func (s *Store) UpdateLead(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (*models.Lead, error) {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updated_at"] = time.Now()

	if err := requireAffected(s.conn(ctx).Model(&models.Lead{}).
		Where("organization_id = ? AND id = ?", orgID, id).
		Updates(merged)); err != nil {
		return nil, err
	}
	return s.GetLead(ctx, orgID, id)
}

// DeleteLead removes the lead and its comments.
func (s *Store) DeleteLead(ctx context.Context, orgID, id uuid.UUID) error {
	return s.Tx(ctx, func(tx *Store) error {
		if _, err := tx.GetLead(ctx, orgID, id); err != nil {
			return err
		}
		return tx.deleteLeadsCascade(orgID, []uuid.UUID{id})
	})
}
