package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) CreateStage(ctx context.Context, stage *models.Stage) error {
	return s.conn(ctx).Create(stage).Error
}

func (s *Store) GetStage(ctx context.Context, orgID, id uuid.UUID) (*models.Stage, error) {
	var stage models.Stage
	if err := s.conn(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&stage).Error; err != nil {
		return nil, translate(err)
	}
	return &stage, nil
}

// FindStageByName matches a stage name within one pipeline, case-sensitively.
func (s *Store) FindStageByName(ctx context.Context, orgID, pipelineID uuid.UUID, name string) (*models.Stage, error) {
	var stage models.Stage
	if err := s.conn(ctx).
		Where("organization_id = ? AND pipeline_id = ? AND name = ?", orgID, pipelineID, name).
		First(&stage).Error; err != nil {
		return nil, translate(err)
	}
	return &stage, nil
}

// ListStages orders by position. A nil pipelineID lists every stage of the
// organization.
func (s *Store) ListStages(ctx context.Context, orgID uuid.UUID, pipelineID *uuid.UUID) ([]models.Stage, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if pipelineID != nil {
		q = q.Where("pipeline_id = ?", *pipelineID)
	}

	var out []models.Stage
	err := q.Order("position ASC").Order("created_at ASC").Find(&out).Error
	return out, err
}

// NextStageOrder returns one past the highest position in the pipeline.
func (s *Store) NextStageOrder(ctx context.Context, orgID, pipelineID uuid.UUID) (int, error) {
	var max sql.NullInt64
	row := s.conn(ctx).Model(&models.Stage{}).
		Where("organization_id = ? AND pipeline_id = ?", orgID, pipelineID).
		Select("MAX(position)").
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func (s *Store) UpdateStage(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (*models.Stage, error) {
	if err := requireAffected(s.conn(ctx).Model(&models.Stage{}).
		Where("organization_id = ? AND id = ?", orgID, id).
		Updates(fields)); err != nil {
		return nil, err
	}
	return s.GetStage(ctx, orgID, id)
}

// DeleteStage removes the stage with its leads and their comments.
func (s *Store) DeleteStage(ctx context.Context, orgID, id uuid.UUID) error {
	return s.Tx(ctx, func(tx *Store) error {
		if _, err := tx.GetStage(ctx, orgID, id); err != nil {
			return err
		}
		return tx.deleteStagesCascade(orgID, []uuid.UUID{id})
	})
}
