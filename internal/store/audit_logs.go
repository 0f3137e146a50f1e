package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return s.conn(ctx).Create(entry).Error
}

// ListAuditLogs returns the newest entries first.
func (s *Store) ListAuditLogs(ctx context.Context, orgID uuid.UUID, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.conn(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
