package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// MaxPipelines is the number of pipelines an organization on this plan may own.
func (p Plan) MaxPipelines() int {
	switch p {
	case PlanPro:
		return 5
	case PlanTeam:
		return 20
	default:
		return 1
	}
}

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanTeam:
		return true
	}
	return false
}

type Organization struct {
	Base
	Name                 string     `gorm:"not null" json:"name"`
	OwnerID              uuid.UUID  `gorm:"type:uuid;index;not null" json:"ownerId"`
	Plan                 Plan       `gorm:"not null;default:'free'" json:"plan"`
	StripeCustomerID     *string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string    `json:"stripeSubscriptionId,omitempty"`
	TrialEndsAt          *time.Time `json:"trialEndsAt,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Membership is a user's role within one organization.
type Membership struct {
	OrganizationID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"organizationId"`
	UserID         uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"userId"`
	Role           Role       `gorm:"not null;default:'viewer'" json:"role"`
	InvitedBy      *uuid.UUID `gorm:"type:uuid" json:"invitedBy,omitempty"`
	InvitedAt      time.Time  `json:"invitedAt"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.InvitedAt.IsZero() {
		m.InvitedAt = time.Now()
	}
	return nil
}
