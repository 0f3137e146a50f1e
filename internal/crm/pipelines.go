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

func (s *Service) ListPipelines(ctx context.Context, p *access.Principal) ([]models.Pipeline, error) {
	if err := p.Require(access.ResourcePipelines, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListPipelines(ctx, p.OrganizationID)
}

func (s *Service) GetPipeline(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Pipeline, error) {
	if err := p.Require(access.ResourcePipelines, access.ActionRead); err != nil {
		return nil, err
	}
	pipeline, err := s.store.GetPipeline(ctx, p.OrganizationID, id)
	if err != nil {
		return nil, notFoundAs(err, ErrPipelineNotFound)
	}
	return pipeline, nil
}

// CreatePipeline enforces the plan's pipeline limit. The count and insert
// run under the organization lock so concurrent creates cannot overshoot.
func (s *Service) CreatePipeline(ctx context.Context, p *access.Principal, name string) (*models.Pipeline, error) {
	if err := p.Require(access.ResourcePipelines, access.ActionCreate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	pipeline := &models.Pipeline{OrganizationID: p.OrganizationID, Name: name}
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		org, err := tx.GetOrganization(ctx, p.OrganizationID)
		if err != nil {
			return notFoundAs(err, access.ErrOrganizationNotFound)
		}
		count, err := tx.CountPipelines(ctx, p.OrganizationID)
		if err != nil {
			return err
		}
		if count >= int64(org.Plan.MaxPipelines()) {
			return ErrPlanLimitReached
		}
		return tx.CreatePipeline(ctx, pipeline)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionCreate,
		Entity:         audit.EntityPipeline,
		EntityID:       pipeline.ID.String(),
		Metadata:       map[string]any{"name": pipeline.Name},
	})
	return pipeline, nil
}

func (s *Service) UpdatePipeline(ctx context.Context, p *access.Principal, id uuid.UUID, name *string) (*models.Pipeline, error) {
	if err := p.Require(access.ResourcePipelines, access.ActionUpdate); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, ErrNameRequired
		}
		fields["name"] = trimmed
	}
	if len(fields) == 0 {
		return s.GetPipeline(ctx, p, id)
	}

	pipeline, err := s.store.UpdatePipeline(ctx, p.OrganizationID, id, fields)
	if err != nil {
		return nil, notFoundAs(err, ErrPipelineNotFound)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionUpdate,
		Entity:         audit.EntityPipeline,
		EntityID:       id.String(),
		Metadata:       fields,
	})
	return pipeline, nil
}

// DeletePipeline cascades to the pipeline's stages, leads and comments.
func (s *Service) DeletePipeline(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := p.Require(access.ResourcePipelines, access.ActionDelete); err != nil {
		return err
	}

	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		return tx.DeletePipeline(ctx, p.OrganizationID, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPipelineNotFound
		}
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntityPipeline,
		EntityID:       id.String(),
	})
	return nil
}
