package airtable

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
	"github.com/hugh/pipedesk/internal/settings"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
)

const (
	DirectionPull = "pull"
	DirectionPush = "push"

	DefaultLeadsTable = "Leads"
	// Pipeline created for pulled leads when the organization has none.
	ImportPipelineName = "Airtable"
	defaultStageName   = "New"
)

// Column names in the leads table.
const (
	fieldName   = "Name"
	fieldEmail  = "Email"
	fieldSource = "Source"
	fieldNotes  = "Notes"
	fieldStage  = "Stage"
)

var (
	ErrMissingConfig    = apperr.Validation("Airtable API key and base ID are required")
	ErrInvalidDirection = apperr.Validation("direction must be pull or push")
	ErrPlanLimitReached = apperr.Conflict("Pipeline limit reached for your plan")
)

// Input carries inline credentials; empty fields fall back to the stored
// settings.
type Input struct {
	APIKey string
	BaseID string
}

type TestResult struct {
	Tables []Table `json:"tables"`
}

type SyncResult struct {
	Direction    string `json:"direction"`
	SyncedLeads  int    `json:"syncedLeads"`
	SyncedStages int    `json:"syncedStages"`
}

type Service struct {
	store    *store.Store
	settings *settings.Service
	client   *Client
	audit    *audit.Recorder
	logger   *slog.Logger
}

func NewService(st *store.Store, settingsSvc *settings.Service, client *Client, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{store: st, settings: settingsSvc, client: client, audit: recorder, logger: logger}
}

// Test lists the base's tables and, on success, stores the credentials.
func (s *Service) Test(ctx context.Context, p *access.Principal, in Input) (*TestResult, error) {
	if err := p.Require(access.ResourceIntegrations, access.ActionUpdate); err != nil {
		return nil, err
	}
	creds, err := s.resolve(ctx, p.OrganizationID, in)
	if err != nil {
		return nil, err
	}

	tables, err := s.client.ListTables(ctx, creds)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []Table{}
	}

	s.saveCredentials(ctx, p, creds)
	s.updateUsage(ctx, p.OrganizationID, func(u models.Usage) {
		u[models.UsageTables] = int64(len(tables))
	})

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionTest,
		Entity:         audit.EntityAirtable,
		Metadata:       map[string]any{"baseId": creds.BaseID, "tables": len(tables)},
	})
	return &TestResult{Tables: tables}, nil
}

// Sync pulls the leads table into the CRM or pushes the CRM's leads out.
func (s *Service) Sync(ctx context.Context, p *access.Principal, in Input, direction string) (*SyncResult, error) {
	if err := p.Require(access.ResourceIntegrations, access.ActionUpdate); err != nil {
		return nil, err
	}
	if direction == "" {
		direction = DirectionPull
	}
	if direction != DirectionPull && direction != DirectionPush {
		return nil, ErrInvalidDirection
	}

	creds, err := s.resolve(ctx, p.OrganizationID, in)
	if err != nil {
		return nil, err
	}
	table, err := s.settings.GetString(ctx, p.OrganizationID, settings.KeyAirtableLeadsTable)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultLeadsTable
	}

	var result *SyncResult
	if direction == DirectionPull {
		result, err = s.pull(ctx, p.OrganizationID, creds, table)
	} else {
		result, err = s.push(ctx, p.OrganizationID, creds, table)
	}
	if err != nil {
		return nil, err
	}

	s.saveCredentials(ctx, p, creds)
	s.updateUsage(ctx, p.OrganizationID, func(u models.Usage) {
		u[models.UsageOperations]++
	})

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionSync,
		Entity:         audit.EntityAirtable,
		Metadata: map[string]any{
			"direction":    result.Direction,
			"table":        table,
			"syncedLeads":  result.SyncedLeads,
			"syncedStages": result.SyncedStages,
		},
	})

	s.logger.Info("airtable sync finished",
		"org_id", p.OrganizationID,
		"direction", result.Direction,
		"leads", result.SyncedLeads,
		"stages", result.SyncedStages,
	)
	return result, nil
}

func (s *Service) pull(ctx context.Context, orgID uuid.UUID, creds Credentials, table string) (*SyncResult, error) {
	records, err := s.client.ListRecords(ctx, creds, table)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Direction: DirectionPull}
	err = s.store.WithOrgTx(ctx, orgID, func(tx *store.Store) error {
		pipeline, err := importPipeline(ctx, tx, orgID)
		if err != nil {
			return err
		}

		stages := map[string]*models.Stage{}
		stageFor := func(name string) (*models.Stage, error) {
			if name == "" {
				name = defaultStageName
			}
			if st, ok := stages[name]; ok {
				return st, nil
			}
			st, err := tx.FindStageByName(ctx, orgID, pipeline.ID, name)
			if errors.Is(err, store.ErrNotFound) {
				order, oerr := tx.NextStageOrder(ctx, orgID, pipeline.ID)
				if oerr != nil {
					return nil, oerr
				}
				st = &models.Stage{OrganizationID: orgID, PipelineID: pipeline.ID, Name: name, Order: order}
				if err := tx.CreateStage(ctx, st); err != nil {
					return nil, err
				}
				result.SyncedStages++
			} else if err != nil {
				return nil, err
			}
			stages[name] = st
			return st, nil
		}

		for _, rec := range records {
			name := stringField(rec.Fields, fieldName)
			if name == "" || rec.ID == "" {
				continue
			}
			stage, err := stageFor(stringField(rec.Fields, fieldStage))
			if err != nil {
				return fmt.Errorf("resolving stage: %w", err)
			}

			email := optionalField(rec.Fields, fieldEmail)
			source := optionalField(rec.Fields, fieldSource)
			notes := optionalField(rec.Fields, fieldNotes)

			existing, err := tx.GetLeadByExternalID(ctx, orgID, rec.ID)
			switch {
			case err == nil:
				_, err = tx.UpdateLead(ctx, orgID, existing.ID, map[string]any{
					"name":     name,
					"email":    email,
					"source":   source,
					"notes":    notes,
					"stage_id": stage.ID,
				})
			case errors.Is(err, store.ErrNotFound):
				externalID := rec.ID
				err = tx.CreateLead(ctx, &models.Lead{
					OrganizationID:   orgID,
					StageID:          stage.ID,
					Name:             name,
					Email:            email,
					Source:           source,
					Notes:            notes,
					ExternalRecordID: &externalID,
				})
			}
			if err != nil {
				return fmt.Errorf("saving lead %s: %w", rec.ID, err)
			}
			result.SyncedLeads++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// importPipeline returns the organization's first pipeline, creating one
// within the plan limit when none exists.
func importPipeline(ctx context.Context, tx *store.Store, orgID uuid.UUID) (*models.Pipeline, error) {
	pipelines, err := tx.ListPipelines(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(pipelines) > 0 {
		return &pipelines[0], nil
	}

	org, err := tx.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(pipelines) >= org.Plan.MaxPipelines() {
		return nil, ErrPlanLimitReached
	}

	pipeline := &models.Pipeline{OrganizationID: orgID, Name: ImportPipelineName}
	if err := tx.CreatePipeline(ctx, pipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}

func (s *Service) push(ctx context.Context, orgID uuid.UUID, creds Credentials, table string) (*SyncResult, error) {
	leads, err := s.store.ListLeads(ctx, orgID, store.LeadFilter{})
	if err != nil {
		return nil, err
	}
	stages, err := s.store.ListStages(ctx, orgID, nil)
	if err != nil {
		return nil, err
	}
	stageNames := make(map[uuid.UUID]string, len(stages))
	for _, st := range stages {
		stageNames[st.ID] = st.Name
	}

	var (
		fresh    []models.Lead
		newRows  []map[string]any
		existing []Record
	)
	for _, lead := range leads {
		fields := leadFields(&lead, stageNames[lead.StageID])
		if lead.ExternalRecordID == nil || *lead.ExternalRecordID == "" {
			fresh = append(fresh, lead)
			newRows = append(newRows, fields)
		} else {
			existing = append(existing, Record{ID: *lead.ExternalRecordID, Fields: fields})
		}
	}

	result := &SyncResult{Direction: DirectionPush}

	if len(existing) > 0 {
		updated, err := s.client.UpdateRecords(ctx, creds, table, existing)
		if err != nil {
			return nil, err
		}
		result.SyncedLeads += len(updated)
	}

	if len(newRows) == 0 {
		return result, nil
	}
	created, err := s.client.CreateRecords(ctx, creds, table, newRows)
	if err != nil {
		return nil, err
	}
	if len(created) != len(fresh) {
		return nil, apperr.Unavailable("Airtable returned an unexpected number of records")
	}

	err = s.store.WithOrgTx(ctx, orgID, func(tx *store.Store) error {
		for i, rec := range created {
			if _, err := tx.UpdateLead(ctx, orgID, fresh[i].ID, map[string]any{"external_record_id": rec.ID}); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storing record ids: %w", err)
	}
	result.SyncedLeads += len(created)
	return result, nil
}

// resolve merges inline credentials over the stored ones.
func (s *Service) resolve(ctx context.Context, orgID uuid.UUID, in Input) (Credentials, error) {
	creds := Credentials{
		APIKey: strings.TrimSpace(in.APIKey),
		BaseID: strings.TrimSpace(in.BaseID),
	}

	var err error
	if creds.APIKey == "" {
		if creds.APIKey, err = s.settings.GetString(ctx, orgID, settings.KeyAirtableAPIKey); err != nil {
			return creds, err
		}
	}
	if creds.BaseID == "" {
		if creds.BaseID, err = s.settings.GetString(ctx, orgID, settings.KeyAirtableBaseID); err != nil {
			return creds, err
		}
	}

	if creds.APIKey == "" || creds.BaseID == "" {
		return creds, ErrMissingConfig
	}
	return creds, nil
}

func (s *Service) saveCredentials(ctx context.Context, p *access.Principal, creds Credentials) {
	if err := s.settings.SaveString(ctx, p.OrganizationID, p.Actor(), settings.KeyAirtableAPIKey, creds.APIKey); err != nil {
		s.logger.Error("failed to store airtable api key", "org_id", p.OrganizationID, "error", err)
	}
	if err := s.settings.SaveString(ctx, p.OrganizationID, p.Actor(), settings.KeyAirtableBaseID, creds.BaseID); err != nil {
		s.logger.Error("failed to store airtable base id", "org_id", p.OrganizationID, "error", err)
	}
}

func (s *Service) updateUsage(ctx context.Context, orgID uuid.UUID, fn func(models.Usage)) {
	err := s.store.WithOrgTx(ctx, orgID, func(tx *store.Store) error {
		return tx.UpdateUsage(ctx, orgID, fn)
	})
	if err != nil {
		s.logger.Warn("failed to update usage", "org_id", orgID, "error", err)
	}
}

func leadFields(lead *models.Lead, stage string) map[string]any {
	fields := map[string]any{fieldName: lead.Name}
	if lead.Email != nil {
		fields[fieldEmail] = *lead.Email
	}
	if lead.Source != nil {
		fields[fieldSource] = *lead.Source
	}
	if lead.Notes != nil {
		fields[fieldNotes] = *lead.Notes
	}
	if stage != "" {
		fields[fieldStage] = stage
	}
	return fields
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func optionalField(fields map[string]any, key string) *string {
	v := stringField(fields, key)
	if v == "" {
		return nil
	}
	return &v
}
