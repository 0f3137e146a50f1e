package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog rows are append-only. ActorID is nil for system actions such as
// billing webhooks.
type AuditLog struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;index;not null" json:"organizationId"`
	ActorID        *uuid.UUID     `gorm:"type:uuid" json:"actorId"`
	Action         string         `gorm:"not null" json:"action"`
	Entity         string         `gorm:"not null" json:"entity"`
	EntityID       *string        `json:"entityId"`
	Metadata       datatypes.JSON `json:"metadata"`
	CreatedAt      time.Time      `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
