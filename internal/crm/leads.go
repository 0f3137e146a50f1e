package crm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
)

type LeadInput struct {
	StageID uuid.UUID
	Name    string
	Email   *string
	Source  *string
	Notes   *string
}

// LeadUpdate carries only the fields to change.
type LeadUpdate struct {
	Name   *string
	Email  *string
	Source *string
	Notes  *string
}

func (s *Service) ListLeads(ctx context.Context, p *access.Principal, filter store.LeadFilter) ([]models.Lead, error) {
	if err := p.Require(access.ResourceLeads, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListLeads(ctx, p.OrganizationID, filter)
}

func (s *Service) GetLead(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Lead, error) {
	if err := p.Require(access.ResourceLeads, access.ActionRead); err != nil {
		return nil, err
	}
	lead, err := s.store.GetLead(ctx, p.OrganizationID, id)
	if err != nil {
		return nil, notFoundAs(err, ErrLeadNotFound)
	}
	return lead, nil
}

func (s *Service) CreateLead(ctx context.Context, p *access.Principal, in LeadInput) (*models.Lead, error) {
	if err := p.Require(access.ResourceLeads, access.ActionCreate); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	lead := &models.Lead{
		OrganizationID: p.OrganizationID,
		StageID:        in.StageID,
		Name:           name,
		Email:          blankToNil(in.Email),
		Source:         blankToNil(in.Source),
		Notes:          blankToNil(in.Notes),
	}
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		if _, err := tx.GetStage(ctx, p.OrganizationID, in.StageID); err != nil {
			return notFoundAs(err, ErrStageNotFound)
		}
		return tx.CreateLead(ctx, lead)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionCreate,
		Entity:         audit.EntityLead,
		EntityID:       lead.ID.String(),
		Metadata:       map[string]any{"name": lead.Name, "stageId": lead.StageID},
	})
	return lead, nil
}

func (s *Service) UpdateLead(ctx context.Context, p *access.Principal, id uuid.UUID, in LeadUpdate) (*models.Lead, error) {
	if err := p.Require(access.ResourceLeads, access.ActionUpdate); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		fields["name"] = name
	}
	if in.Email != nil {
		fields["email"] = blankToNil(in.Email)
	}
	if in.Source != nil {
		fields["source"] = blankToNil(in.Source)
	}
	if in.Notes != nil {
		fields["notes"] = blankToNil(in.Notes)
	}

	lead, err := s.store.UpdateLead(ctx, p.OrganizationID, id, fields)
	if err != nil {
		return nil, notFoundAs(err, ErrLeadNotFound)
	}

	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}
	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionUpdate,
		Entity:         audit.EntityLead,
		EntityID:       id.String(),
		Metadata:       map[string]any{"fields": changed},
	})
	return lead, nil
}

// MoveLead re-parents a lead onto another stage of the same organization.
// A destination stage owned by another organization is not found.
func (s *Service) MoveLead(ctx context.Context, p *access.Principal, id, stageID uuid.UUID) (*models.Lead, error) {
	if err := p.Require(access.ResourceLeads, access.ActionUpdate); err != nil {
		return nil, err
	}

	var (
		moved *models.Lead
		from  uuid.UUID
	)
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		lead, err := tx.GetLead(ctx, p.OrganizationID, id)
		if err != nil {
			return notFoundAs(err, ErrLeadNotFound)
		}
		if _, err := tx.GetStage(ctx, p.OrganizationID, stageID); err != nil {
			return notFoundAs(err, ErrStageNotFound)
		}
		from = lead.StageID

		moved, err = tx.UpdateLead(ctx, p.OrganizationID, id, map[string]any{"stage_id": stageID})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionMove,
		Entity:         audit.EntityLead,
		EntityID:       id.String(),
		Metadata:       map[string]any{"fromStageId": from, "toStageId": stageID},
	})
	return moved, nil
}

// DeleteLead removes the lead together with its comments.
func (s *Service) DeleteLead(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := p.Require(access.ResourceLeads, access.ActionDelete); err != nil {
		return err
	}

	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		return tx.DeleteLead(ctx, p.OrganizationID, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrLeadNotFound
		}
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntityLead,
		EntityID:       id.String(),
	})
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
