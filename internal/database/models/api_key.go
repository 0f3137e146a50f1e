package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey stores only the SHA-256 of its secret. The plaintext is returned
// once, by the create call.
type APIKey struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organizationId"`
	Name           string     `gorm:"not null" json:"name"`
	SecretHash     string     `gorm:"uniqueIndex;not null" json:"-"`
	Preview        string     `gorm:"not null" json:"preview"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	CreatedBy      uuid.UUID  `gorm:"type:uuid;not null" json:"createdBy"`
}

func (APIKey) TableName() string {
	return "api_keys"
}
