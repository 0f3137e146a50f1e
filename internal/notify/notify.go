// Package notify delivers member notifications, currently @mentions in lead
// comments.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
	"gorm.io/datatypes"
)

var ErrNotificationNotFound = apperr.NotFound("Notification not found")

// Mention says that AuthorID mentioned UserID in a comment on a lead.
type Mention struct {
	OrganizationID uuid.UUID `json:"organizationId"`
	LeadID         uuid.UUID `json:"leadId"`
	CommentID      uuid.UUID `json:"commentId"`
	AuthorID       uuid.UUID `json:"authorId"`
	UserID         uuid.UUID `json:"userId"`
}

// Notifier delivers a mention to its recipient.
type Notifier interface {
	NotifyMention(ctx context.Context, m Mention) error
}

// StoreNotifier writes the notification row directly. The worker uses it to
// finish queued deliveries; the API uses it when no queue is configured.
type StoreNotifier struct {
	store *store.Store
}

func NewStoreNotifier(st *store.Store) *StoreNotifier {
	return &StoreNotifier{store: st}
}

func (n *StoreNotifier) NotifyMention(ctx context.Context, m Mention) error {
	payload, err := json.Marshal(map[string]string{
		"leadId":    m.LeadID.String(),
		"commentId": m.CommentID.String(),
		"authorId":  m.AuthorID.String(),
	})
	if err != nil {
		return err
	}

	notification := &models.Notification{
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Kind:           models.NotificationKindMention,
		Payload:        datatypes.JSON(payload),
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// Service lists and acknowledges the caller's own notifications.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) List(ctx context.Context, p *access.Principal, unreadOnly bool) ([]models.Notification, error) {
	if err := p.Require(access.ResourceNotifications, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, p.OrganizationID, p.UserID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := p.Require(access.ResourceNotifications, access.ActionUpdate); err != nil {
		return err
	}
	if err := s.store.MarkNotificationRead(ctx, p.OrganizationID, p.UserID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

var _ Notifier = (*StoreNotifier)(nil)
