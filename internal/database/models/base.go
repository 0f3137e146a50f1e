package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with UUID primary key and timestamps. Rows are hard-deleted;
// children are removed by the store's cascade before their parent.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every model in dependency order, parents first.
func All() []any {
	return []any{
		&User{},
		&Organization{},
		&Membership{},
		&APIKey{},
		&Setting{},
		&Subscription{},
		&AuditLog{},
		&Pipeline{},
		&Stage{},
		&Lead{},
		&LeadComment{},
		&Notification{},
	}
}
