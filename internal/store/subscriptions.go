package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"gorm.io/datatypes"
)

func (s *Store) GetSubscription(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.conn(ctx).Where("organization_id = ?", orgID).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// SaveSubscription inserts or fully replaces the organization's subscription.
func (s *Store) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.conn(ctx).Save(sub).Error
}

// UpdateUsage applies fn to the organization's usage counters. Callers that
// may race should hold the organization lock via WithOrgTx.
func (s *Store) UpdateUsage(ctx context.Context, orgID uuid.UUID, fn func(models.Usage)) error {
	sub, err := s.GetSubscription(ctx, orgID)
	if err != nil {
		return err
	}

	usage := models.Usage{}
	for k, v := range sub.Usage.Data() {
		usage[k] = v
	}
	fn(usage)

	return s.conn(ctx).Model(&models.Subscription{}).
		Where("organization_id = ?", orgID).
		Update("usage", datatypes.NewJSONType(usage)).Error
}

// ResetAllUsage zeroes the counters of every subscription and reports how
// many were reset.
func (s *Store) ResetAllUsage(ctx context.Context) (int64, error) {
	res := s.conn(ctx).Model(&models.Subscription{}).
		Where("1 = 1").
		Update("usage", datatypes.NewJSONType(models.Usage{}))
	return res.RowsAffected, res.Error
}
