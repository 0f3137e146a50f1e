package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
)

func (s *Store) CreateMembership(ctx context.Context, m *models.Membership) error {
	if m.InvitedAt.IsZero() {
		m.InvitedAt = time.Now()
	}
	return s.conn(ctx).Create(m).Error
}

func (s *Store) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	if err := s.conn(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// ListMembers returns memberships with their users, in invitation order.
func (s *Store) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.Membership, error) {
	var members []models.Membership
	err := s.conn(ctx).
		Preload("User").
		Where("organization_id = ?", orgID).
		Order("invited_at ASC").
		Find(&members).Error
	return members, err
}

func (s *Store) UpdateMembershipRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	return requireAffected(s.conn(ctx).Model(&models.Membership{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Update("role", role))
}

// AcceptMembership stamps accepted_at the first time a member uses the
// organization. Already accepted memberships are left untouched.
func (s *Store) AcceptMembership(ctx context.Context, orgID, userID uuid.UUID) error {
	return s.conn(ctx).Model(&models.Membership{}).
		Where("organization_id = ? AND user_id = ? AND accepted_at IS NULL", orgID, userID).
		Update("accepted_at", time.Now()).Error
}

func (s *Store) DeleteMembership(ctx context.Context, orgID, userID uuid.UUID) error {
	return requireAffected(s.conn(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&models.Membership{}))
}
