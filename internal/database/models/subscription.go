package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Usage counter keys.
const (
	UsageOperations = "operations"
	UsageTables     = "tables"
)

type Usage map[string]int64

// Subscription is keyed by organization; there is at most one per tenant.
type Subscription struct {
	OrganizationID   uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"organizationId"`
	Plan             Plan                      `gorm:"not null;default:'free'" json:"plan"`
	Status           string                    `gorm:"not null;default:'active'" json:"status"`
	CurrentPeriodEnd *time.Time                `json:"currentPeriodEnd,omitempty"`
	Usage            datatypes.JSONType[Usage] `json:"usage"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
