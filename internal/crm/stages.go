package crm

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
)

type StageInput struct {
	PipelineID uuid.UUID
	Name       string
	// Order defaults to after the pipeline's last stage.
	Order *int
}

type StageUpdate struct {
	Name  *string
	Order *int
}

type StageOrder struct {
	ID    uuid.UUID `json:"id"`
	Order int       `json:"order"`
}

func (s *Service) ListStages(ctx context.Context, p *access.Principal, pipelineID *uuid.UUID) ([]models.Stage, error) {
	if err := p.Require(access.ResourceStages, access.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListStages(ctx, p.OrganizationID, pipelineID)
}

func (s *Service) GetStage(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Stage, error) {
	if err := p.Require(access.ResourceStages, access.ActionRead); err != nil {
		return nil, err
	}
	stage, err := s.store.GetStage(ctx, p.OrganizationID, id)
	if err != nil {
		return nil, notFoundAs(err, ErrStageNotFound)
	}
	return stage, nil
}

func (s *Service) CreateStage(ctx context.Context, p *access.Principal, in StageInput) (*models.Stage, error) {
	if err := p.Require(access.ResourceStages, access.ActionCreate); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	stage := &models.Stage{
		OrganizationID: p.OrganizationID,
		PipelineID:     in.PipelineID,
		Name:           name,
	}
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		if _, err := tx.GetPipeline(ctx, p.OrganizationID, in.PipelineID); err != nil {
			return notFoundAs(err, ErrPipelineNotFound)
		}
		if in.Order != nil {
			stage.Order = *in.Order
		} else {
			next, err := tx.NextStageOrder(ctx, p.OrganizationID, in.PipelineID)
			if err != nil {
				return err
			}
			stage.Order = next
		}
		return tx.CreateStage(ctx, stage)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionCreate,
		Entity:         audit.EntityStage,
		EntityID:       stage.ID.String(),
		Metadata:       map[string]any{"name": stage.Name, "pipelineId": stage.PipelineID, "order": stage.Order},
	})
	return stage, nil
}

func (s *Service) UpdateStage(ctx context.Context, p *access.Principal, id uuid.UUID, in StageUpdate) (*models.Stage, error) {
	if err := p.Require(access.ResourceStages, access.ActionUpdate); err != nil {
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
	if in.Order != nil {
		fields["position"] = *in.Order
	}
	if len(fields) == 0 {
		return s.GetStage(ctx, p, id)
	}

	stage, err := s.store.UpdateStage(ctx, p.OrganizationID, id, fields)
	if err != nil {
		return nil, notFoundAs(err, ErrStageNotFound)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionUpdate,
		Entity:         audit.EntityStage,
		EntityID:       id.String(),
		Metadata:       fields,
	})
	return stage, nil
}

// DeleteStage cascades to the stage's leads and their comments.
func (s *Service) DeleteStage(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := p.Require(access.ResourceStages, access.ActionDelete); err != nil {
		return err
	}

	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		return tx.DeleteStage(ctx, p.OrganizationID, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStageNotFound
		}
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntityStage,
		EntityID:       id.String(),
	})
	return nil
}

// ReorderStages applies every position change or none of them.
func (s *Service) ReorderStages(ctx context.Context, p *access.Principal, orders []StageOrder) ([]models.Stage, error) {
	if err := p.Require(access.ResourceStages, access.ActionUpdate); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrEmptyReorder
	}

	updated := make([]models.Stage, 0, len(orders))
	err := s.store.WithOrgTx(ctx, p.OrganizationID, func(tx *store.Store) error {
		for _, o := range orders {
			stage, err := tx.UpdateStage(ctx, p.OrganizationID, o.ID, map[string]any{"position": o.Order})
			if err != nil {
				return notFoundAs(err, ErrStageNotFound)
			}
			updated = append(updated, *stage)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(updated, func(i, j int) bool { return updated[i].Order < updated[j].Order })

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionReorder,
		Entity:         audit.EntityStage,
		Metadata:       map[string]any{"stageOrders": orders},
	})
	return updated, nil
}
