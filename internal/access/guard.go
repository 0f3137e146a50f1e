package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
)

var (
	ErrNotMember            = apperr.Forbidden("Not a member of this organization")
	ErrInsufficientRole     = apperr.Forbidden("Insufficient permissions")
	ErrOrganizationNotFound = apperr.NotFound("Organization not found")
	ErrAPIKeyOutOfScope     = apperr.Forbidden("API key is not valid for this organization")
)

// Principal is an authenticated caller acting inside one organization.
type Principal struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           models.Role
	// APIKeyID is set when the request authenticated with an API key.
	APIKeyID *uuid.UUID
}

func (p *Principal) Can(resource Resource, action Action) bool {
	return Allowed(p.Role, resource, action)
}

func (p *Principal) Require(resource Resource, action Action) error {
	if !p.Can(resource, action) {
		return ErrInsufficientRole
	}
	return nil
}

func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// Actor returns the user id for audit entries.
func (p *Principal) Actor() *uuid.UUID {
	id := p.UserID
	return &id
}

type Guard struct {
	store  *store.Store
	logger *slog.Logger
}

func NewGuard(st *store.Store, logger *slog.Logger) *Guard {
	return &Guard{store: st, logger: logger}
}

// Resolve looks up the user's membership in the organization. A missing
// organization is reported as not-found, a missing membership as forbidden.
func (g *Guard) Resolve(ctx context.Context, orgID, userID uuid.UUID) (*Principal, error) {
	m, err := g.store.GetMembership(ctx, orgID, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("loading membership: %w", err)
		}
		if _, orgErr := g.store.GetOrganization(ctx, orgID); errors.Is(orgErr, store.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, ErrNotMember
	}

	if m.AcceptedAt == nil {
		if err := g.store.AcceptMembership(ctx, orgID, userID); err != nil {
			g.logger.Warn("failed to mark membership accepted", "org_id", orgID, "user_id", userID, "error", err)
		}
	}

	return &Principal{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           m.Role,
	}, nil
}
