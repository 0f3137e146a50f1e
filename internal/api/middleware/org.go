package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/pkg/apperr"
)

// OrgParam is the URL parameter holding the organization id.
const OrgParam = "orgId"

// ResolvePrincipal checks the caller's membership in orgID. API keys are
// only valid for the organization that issued them.
func ResolvePrincipal(ctx context.Context, guard *access.Guard, orgID uuid.UUID) (*access.Principal, error) {
	key := GetAPIKey(ctx)
	if key != nil && key.OrganizationID != orgID {
		return nil, access.ErrAPIKeyOutOfScope
	}

	p, err := guard.Resolve(ctx, orgID, GetUserID(ctx))
	if err != nil {
		return nil, err
	}
	if key != nil {
		id := key.ID
		p.APIKeyID = &id
	}
	return p, nil
}

// OrgAccess resolves the caller's principal for the organization in the
// path before any handler runs.
func OrgAccess(guard *access.Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, err := uuid.Parse(chi.URLParam(r, OrgParam))
			if err != nil {
				writeError(w, http.StatusNotFound, apperr.Message(access.ErrOrganizationNotFound))
				return
			}

			p, err := ResolvePrincipal(r.Context(), guard, orgID)
			if err != nil {
				status := apperr.HTTPStatus(err)
				if status == http.StatusInternalServerError {
					logger.Error("resolving membership failed", "org_id", orgID, "error", err)
				}
				writeError(w, status, apperr.Message(err))
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the principal set by OrgAccess.
func GetPrincipal(ctx context.Context) *access.Principal {
	p, _ := ctx.Value(PrincipalKey).(*access.Principal)
	return p
}
