package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withUser stands in for Auth in these tests.
func withUser(userID uuid.UUID, key *models.APIKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			if key != nil {
				ctx = context.WithValue(ctx, APIKeyKey, key)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func orgRouter(guard *access.Guard, userID uuid.UUID, key *models.APIKey, seen **access.Principal) *chi.Mux {
	r := chi.NewRouter()
	r.Use(withUser(userID, key))
	r.With(OrgAccess(guard, testutil.DiscardLogger())).Get("/orgs/{orgId}", func(w http.ResponseWriter, r *http.Request) {
		*seen = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestOrgAccess(t *testing.T) {
	setup := testutil.NewTestContext(t)
	guard := access.NewGuard(setup.Store, testutil.DiscardLogger())
	outsider := testutil.CreateTestUser(t, setup.Store, "Outsider")

	tests := []struct {
		name   string
		userID uuid.UUID
		path   string
		status int
	}{
		{"member", setup.User.ID, "/orgs/" + setup.Org.ID.String(), http.StatusOK},
		{"non_member", outsider.ID, "/orgs/" + setup.Org.ID.String(), http.StatusForbidden},
		{"unknown_org", setup.User.ID, "/orgs/" + uuid.NewString(), http.StatusNotFound},
		{"malformed_id", setup.User.ID, "/orgs/not-a-uuid", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *access.Principal
			router := orgRouter(guard, tt.userID, nil, &seen)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, models.RoleAdmin, seen.Role)
				assert.Equal(t, setup.Org.ID, seen.OrganizationID)
				assert.Nil(t, seen.APIKeyID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestOrgAccess_APIKeyScope(t *testing.T) {
	setup := testutil.NewTestContext(t)
	guard := access.NewGuard(setup.Store, testutil.DiscardLogger())
	otherOrg := testutil.CreateTestOrg(t, setup.Store, setup.User)

	key := &models.APIKey{OrganizationID: setup.Org.ID, CreatedBy: setup.User.ID}
	key.ID = uuid.New()

	var seen *access.Principal
	router := orgRouter(guard, setup.User.ID, key, &seen)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orgs/"+setup.Org.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.NotNil(t, seen.APIKeyID)
	assert.Equal(t, key.ID, *seen.APIKeyID)

	seen = nil
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orgs/"+otherOrg.ID.String(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "API key is not valid for this organization")
	assert.Nil(t, seen)
}
