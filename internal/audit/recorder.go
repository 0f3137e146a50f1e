// Package audit appends and lists the per-organization audit trail.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"gorm.io/datatypes"
)

// Action verbs.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionInvite   = "invite"
	ActionMove     = "move"
	ActionReorder  = "reorder"
	ActionMention  = "mention"
	ActionCheckout = "checkout"
	ActionPortal   = "portal"
	ActionWebhook  = "webhook"
	ActionTest     = "test"
	ActionSync     = "sync"
)

// Entity kinds.
const (
	EntityOrganization = "organization"
	EntityMember       = "member"
	EntityAPIKey       = "api_key"
	EntitySetting      = "setting"
	EntitySubscription = "subscription"
	EntityPipeline     = "pipeline"
	EntityStage        = "stage"
	EntityLead         = "lead"
	EntityComment      = "comment"
	EntityAirtable     = "airtable"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Entry struct {
	OrganizationID uuid.UUID
	ActorID        *uuid.UUID
	Action         string
	Entity         string
	EntityID       string
	Metadata       map[string]any
}

type Recorder struct {
	store  *store.Store
	logger *slog.Logger
}

func NewRecorder(st *store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record appends an entry after the mutation it describes has committed.
// A failure here does not undo that mutation; it is logged and dropped.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		r.logger.Error("audit metadata not serializable", "action", e.Action, "entity", e.Entity, "error", err)
		raw = []byte("{}")
	}

	entry := &models.AuditLog{
		OrganizationID: e.OrganizationID,
		ActorID:        e.ActorID,
		Action:         e.Action,
		Entity:         e.Entity,
		Metadata:       datatypes.JSON(raw),
	}
	if e.EntityID != "" {
		id := e.EntityID
		entry.EntityID = &id
	}

	if err := r.store.AppendAuditLog(ctx, entry); err != nil {
		r.logger.Error("failed to write audit log",
			"org_id", e.OrganizationID,
			"action", e.Action,
			"entity", e.Entity,
			"error", err,
		)
	}
}

// List returns the newest entries first. Non-positive limits use
// DefaultLimit; limits above MaxLimit are clamped.
func (r *Recorder) List(ctx context.Context, orgID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return r.store.ListAuditLogs(ctx, orgID, limit)
}
