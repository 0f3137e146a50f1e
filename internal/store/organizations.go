package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"gorm.io/datatypes"
)

// OrganizationWithRole is an organization as seen by one member.
type OrganizationWithRole struct {
	models.Organization
	Role models.Role `json:"role"`
}

type OrganizationStats struct {
	Members   int64 `json:"members"`
	Pipelines int64 `json:"pipelines"`
	Leads     int64 `json:"leads"`
	APIKeys   int64 `json:"apiKeys"`
}

// CreateOrganization inserts the organization together with its owner's
// admin membership (accepted immediately) and a free subscription.
func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.Plan == "" {
		org.Plan = models.PlanFree
	}

	return s.Tx(ctx, func(tx *Store) error {
		if err := tx.db.Create(org).Error; err != nil {
			return err
		}

		now := time.Now()
		owner := &models.Membership{
			OrganizationID: org.ID,
			UserID:         org.OwnerID,
			Role:           models.RoleAdmin,
			InvitedAt:      now,
			AcceptedAt:     &now,
		}
		if err := tx.db.Create(owner).Error; err != nil {
			return err
		}

		sub := &models.Subscription{
			OrganizationID: org.ID,
			Plan:           org.Plan,
			Status:         "active",
			Usage:          datatypes.NewJSONType(models.Usage{}),
		}
		return tx.db.Create(sub).Error
	})
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.conn(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (s *Store) GetOrganizationByStripeCustomer(ctx context.Context, customerID string) (*models.Organization, error) {
	var org models.Organization
	if err := s.conn(ctx).Where("stripe_customer_id = ?", customerID).First(&org).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

// UpdateOrganization merges the given columns into the organization.
func (s *Store) UpdateOrganization(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return requireAffected(s.conn(ctx).Model(&models.Organization{}).
		Where("id = ?", id).
		Updates(fields))
}

// ListOrganizationsForUser returns every organization the user belongs to,
// oldest first, with the user's role in each.
func (s *Store) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]OrganizationWithRole, error) {
	var memberships []models.Membership
	if err := s.conn(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []OrganizationWithRole{}, nil
	}

	roles := make(map[uuid.UUID]models.Role, len(memberships))
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		roles[m.OrganizationID] = m.Role
		ids = append(ids, m.OrganizationID)
	}

	var orgs []models.Organization
	if err := s.conn(ctx).Where("id IN ?", ids).Order("created_at ASC").Find(&orgs).Error; err != nil {
		return nil, err
	}

	out := make([]OrganizationWithRole, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, OrganizationWithRole{Organization: org, Role: roles[org.ID]})
	}
	return out, nil
}

func (s *Store) OrganizationStats(ctx context.Context, orgID uuid.UUID) (*OrganizationStats, error) {
	var stats OrganizationStats
	db := s.conn(ctx)

	if err := db.Model(&models.Membership{}).Where("organization_id = ?", orgID).Count(&stats.Members).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Pipeline{}).Where("organization_id = ?", orgID).Count(&stats.Pipelines).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Lead{}).Where("organization_id = ?", orgID).Count(&stats.Leads).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.APIKey{}).Where("organization_id = ?", orgID).Count(&stats.APIKeys).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
