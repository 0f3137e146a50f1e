package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Setting struct {
	OrganizationID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"organizationId"`
	Key            string         `gorm:"primaryKey" json:"key"`
	Value          datatypes.JSON `json:"value"`
	UpdatedBy      *uuid.UUID     `gorm:"type:uuid" json:"updatedBy,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (Setting) TableName() string {
	return "settings"
}
