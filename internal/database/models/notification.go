package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const NotificationKindMention = "mention"

type Notification struct {
	Base
	OrganizationID uuid.UUID      `gorm:"type:uuid;index;not null" json:"organizationId"`
	UserID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"userId"`
	Kind           string         `gorm:"not null" json:"kind"`
	Payload        datatypes.JSON `json:"payload"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
