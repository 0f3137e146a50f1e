package crm

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/store"
)

func (s *Service) ListComments(ctx context.Context, p *access.Principal, leadID uuid.UUID) ([]models.LeadComment, error) {
	if err := p.Require(access.ResourceComments, access.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetLead(ctx, p.OrganizationID, leadID); err != nil {
		return nil, notFoundAs(err, ErrLeadNotFound)
	}
	return s.store.ListComments(ctx, p.OrganizationID, leadID)
}

// CreateComment stores the comment with its resolved @mentions, then
// notifies and audits each mentioned member.
func (s *Service) CreateComment(ctx context.Context, p *access.Principal, leadID uuid.UUID, body string) (*models.LeadComment, error) {
	if err := p.Require(access.ResourceComments, access.ActionCreate); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrBodyRequired
	}

	comment := &models.LeadComment{
		OrganizationID: p.OrganizationID,
		LeadID:         leadID,
		Body:           body,
		AuthorID:       p.UserID,
	}
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		if _, err := tx.GetLead(ctx, p.OrganizationID, leadID); err != nil {
			return notFoundAs(err, ErrLeadNotFound)
		}
		members, err := tx.ListMembers(ctx, p.OrganizationID)
		if err != nil {
			return err
		}
		comment.Mentions = resolveMentions(body, p.UserID, members)
		return tx.CreateComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionCreate,
		Entity:         audit.EntityComment,
		EntityID:       comment.ID.String(),
		Metadata:       map[string]any{"leadId": leadID, "mentions": len(comment.Mentions)},
	})

	for _, userID := range comment.Mentions {
		mention := notify.Mention{
			OrganizationID: p.OrganizationID,
			LeadID:         leadID,
			CommentID:      comment.ID,
			AuthorID:       p.UserID,
			UserID:         userID,
		}
		if err := s.notifier.NotifyMention(ctx, mention); err != nil {
			s.logger.Warn("mention notification failed", "comment_id", comment.ID, "user_id", userID, "error", err)
		}

		s.audit.Record(ctx, audit.Entry{
			OrganizationID: p.OrganizationID,
			ActorID:        p.Actor(),
			Action:         audit.ActionMention,
			Entity:         audit.EntityComment,
			EntityID:       comment.ID.String(),
			Metadata:       map[string]any{"leadId": leadID, "mentionedUserId": userID},
		})
	}

	return comment, nil
}

// DeleteComment is open to the comment's author and to admins.
func (s *Service) DeleteComment(ctx context.Context, p *access.Principal, leadID, id uuid.UUID) error {
	if err := p.Require(access.ResourceComments, access.ActionDelete); err != nil {
		return err
	}

	comment, err := s.store.GetComment(ctx, p.OrganizationID, leadID, id)
	if err != nil {
		return notFoundAs(err, ErrCommentNotFound)
	}
	if comment.AuthorID != p.UserID && !p.IsAdmin() {
		return ErrNotCommentAuthor
	}

	if err := s.store.DeleteComment(ctx, p.OrganizationID, leadID, id); err != nil {
		return notFoundAs(err, ErrCommentNotFound)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntityComment,
		EntityID:       id.String(),
		Metadata:       map[string]any{"leadId": leadID},
	})
	return nil
}
