package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Pipeline struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organizationId"`
	Name           string    `gorm:"not null" json:"name"`
}

func (Pipeline) TableName() string {
	return "pipelines"
}

type Stage struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organizationId"`
	PipelineID     uuid.UUID `gorm:"type:uuid;index;not null" json:"pipelineId"`
	Name           string    `gorm:"not null" json:"name"`
	Order          int       `gorm:"column:position;not null;default:0" json:"order"`
}

func (Stage) TableName() string {
	return "stages"
}

type Lead struct {
	Base
	OrganizationID   uuid.UUID `gorm:"type:uuid;index;not null" json:"organizationId"`
	StageID          uuid.UUID `gorm:"type:uuid;index;not null" json:"stageId"`
	Name             string    `gorm:"not null" json:"name"`
	Email            *string   `json:"email,omitempty"`
	Source           *string   `json:"source,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
	ExternalRecordID *string   `gorm:"index" json:"externalRecordId,omitempty"`
}

func (Lead) TableName() string {
	return "leads"
}

type LeadComment struct {
	Base
	OrganizationID uuid.UUID                      `gorm:"type:uuid;index;not null" json:"organizationId"`
	LeadID         uuid.UUID                      `gorm:"type:uuid;index;not null" json:"leadId"`
	Body           string                         `gorm:"not null" json:"body"`
	AuthorID       uuid.UUID                      `gorm:"type:uuid;not null" json:"authorId"`
	Mentions       datatypes.JSONSlice[uuid.UUID] `json:"mentions"`
}

func (LeadComment) TableName() string {
	return "lead_comments"
}
