// Package orgs manages organizations and their memberships.
package orgs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
)

var (
	ErrNameRequired   = apperr.Validation("Organization name is required")
	ErrInvalidRole    = apperr.Validation("Role must be one of admin, editor, viewer")
	ErrUnknownUser    = apperr.Validation("No registered user with that email")
	ErrAlreadyMember  = apperr.Conflict("User is already a member of this organization")
	ErrMemberNotFound = apperr.NotFound("Member not found")
	ErrOwnerProtected = apperr.Conflict("The organization owner's membership cannot be changed")
)

type Service struct {
	store  *store.Store
	audit  *audit.Recorder
	logger *slog.Logger
}

func NewService(st *store.Store, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{store: st, audit: recorder, logger: logger}
}

// Overview is the organization detail view for one member.
type Overview struct {
	Organization *models.Organization     `json:"organization"`
	Subscription *models.Subscription     `json:"subscription"`
	Stats        *store.OrganizationStats `json:"stats"`
	UserRole     models.Role              `json:"userRole"`
}

// Create makes a new organization owned by ownerID, who becomes an accepted
// admin.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	org := &models.Organization{
		Name:    name,
		OwnerID: ownerID,
		Plan:    models.PlanFree,
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: org.ID,
		ActorID:        &ownerID,
		Action:         audit.ActionCreate,
		Entity:         audit.EntityOrganization,
		EntityID:       org.ID.String(),
		Metadata:       map[string]any{"name": org.Name},
	})

	s.logger.Info("organization created", "org_id", org.ID, "owner_id", ownerID)
	return org, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]store.OrganizationWithRole, error) {
	return s.store.ListOrganizationsForUser(ctx, userID)
}

func (s *Service) Overview(ctx context.Context, p *access.Principal) (*Overview, error) {
	if err := p.Require(access.ResourceOrganization, access.ActionRead); err != nil {
		return nil, err
	}

	org, err := s.store.GetOrganization(ctx, p.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, access.ErrOrganizationNotFound
		}
		return nil, err
	}

	sub, err := s.store.GetSubscription(ctx, p.OrganizationID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	stats, err := s.store.OrganizationStats(ctx, p.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}

	return &Overview{
		Organization: org,
		Subscription: sub,
		Stats:        stats,
		UserRole:     p.Role,
	}, nil
}

func (s *Service) ListMembers(ctx context.Context, p *access.Principal) ([]models.Membership, error) {
	if err := p.Require(access.ResourceMembers, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, p.OrganizationID)
}

// Invite adds an already registered user to the organization. Only admins
// may grant the admin role.
func (s *Service) Invite(ctx context.Context, p *access.Principal, email string, role models.Role) (*models.Membership, error) {
	if err := p.Require(access.ResourceMembers, access.ActionCreate); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleViewer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role == models.RoleAdmin && !p.IsAdmin() {
		return nil, access.ErrInsufficientRole
	}

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	inviter := p.UserID
	membership := &models.Membership{
		OrganizationID: p.OrganizationID,
		UserID:         user.ID,
		Role:           role,
		InvitedBy:      &inviter,
	}

	err = s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		if _, err := tx.GetMembership(ctx, p.OrganizationID, user.ID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.CreateMembership(ctx, membership)
	})
	if err != nil {
		return nil, err
	}
	membership.User = user

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionInvite,
		Entity:         audit.EntityMember,
		EntityID:       user.ID.String(),
		Metadata:       map[string]any{"email": user.Email, "role": role},
	})

	return membership, nil
}

func (s *Service) UpdateRole(ctx context.Context, p *access.Principal, userID uuid.UUID, role models.Role) (*models.Membership, error) {
	if err := p.Require(access.ResourceMembers, access.ActionUpdate); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.protectOwner(ctx, p.OrganizationID, userID); err != nil {
		return nil, err
	}

	var updated *models.Membership
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		if err := tx.UpdateMembershipRole(ctx, p.OrganizationID, userID, role); err != nil {
			return err
		}
		m, err := tx.GetMembership(ctx, p.OrganizationID, userID)
		updated = m
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionUpdate,
		Entity:         audit.EntityMember,
		EntityID:       userID.String(),
		Metadata:       map[string]any{"role": role},
	})

	return updated, nil
}

func (s *Service) Remove(ctx context.Context, p *access.Principal, userID uuid.UUID) error {
	if err := p.Require(access.ResourceMembers, access.ActionDelete); err != nil {
		return err
	}
	if err := s.protectOwner(ctx, p.OrganizationID, userID); err != nil {
		return err
	}

	if err := s.store.DeleteMembership(ctx, p.OrganizationID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMemberNotFound
		}
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntityMember,
		EntityID:       userID.String(),
	})
	return nil
}

func (s *Service) protectOwner(ctx context.Context, orgID, userID uuid.UUID) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.OwnerID == userID {
		return ErrOwnerProtected
	}
	return nil
}
