package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.conn(ctx).Create(n).Error
}

func (s *Store) ListNotifications(ctx context.Context, orgID, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	q := s.conn(ctx).Where("organization_id = ? AND user_id = ?", orgID, userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}

	var out []models.Notification
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, orgID, userID, id uuid.UUID) error {
	return requireAffected(s.conn(ctx).Model(&models.Notification{}).
		Where("organization_id = ? AND user_id = ? AND id = ?", orgID, userID, id).
		Update("read_at", time.Now()))
}
