package access_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		role     models.Role
		resource access.Resource
		action   access.Action
		want     bool
	}{
		{models.RoleViewer, access.ResourceLeads, access.ActionRead, true},
		{models.RoleViewer, access.ResourceLeads, access.ActionCreate, false},
		{models.RoleViewer, access.ResourceComments, access.ActionCreate, true},
		{models.RoleEditor, access.ResourcePipelines, access.ActionDelete, true},
		{models.RoleEditor, access.ResourceSettings, access.ActionUpdate, false},
		{models.RoleEditor, access.ResourceMembers, access.ActionCreate, true},
		{models.RoleEditor, access.ResourceMembers, access.ActionDelete, false},
		{models.RoleEditor, access.ResourceBilling, access.ActionRead, false},
		{models.RoleAdmin, access.ResourceBilling, access.ActionUpdate, true},
		{models.RoleAdmin, access.ResourceAuditLogs, access.ActionDelete, false},
		{models.Role("owner"), access.ResourceLeads, access.ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.resource)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, access.Allowed(tt.role, tt.resource, tt.action))
		})
	}
}

func TestGuardResolve(t *testing.T) {
	setup := testutil.NewTestContext(t)
	guard := access.NewGuard(setup.Store, testutil.DiscardLogger())
	ctx := context.Background()

	p, err := guard.Resolve(ctx, setup.Org.ID, setup.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.True(t, p.IsAdmin())

	stranger := testutil.CreateTestUser(t, setup.Store, "Stranger")
	_, err = guard.Resolve(ctx, setup.Org.ID, stranger.ID)
	assert.ErrorIs(t, err, access.ErrNotMember)

	_, err = guard.Resolve(ctx, uuid.New(), setup.User.ID)
	assert.ErrorIs(t, err, access.ErrOrganizationNotFound)
}

func TestGuardResolve_AcceptsPendingInvite(t *testing.T) {
	setup := testutil.NewTestContext(t)
	guard := access.NewGuard(setup.Store, testutil.DiscardLogger())
	ctx := context.Background()

	bob := testutil.CreateTestUser(t, setup.Store, "Bob")
	require.NoError(t, setup.Store.CreateMembership(ctx, &models.Membership{
		OrganizationID: setup.Org.ID,
		UserID:         bob.ID,
		Role:           models.RoleEditor,
	}))

	p, err := guard.Resolve(ctx, setup.Org.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, p.Role)

	m, err := setup.Store.GetMembership(ctx, setup.Org.ID, bob.ID)
	require.NoError(t, err)
	assert.NotNil(t, m.AcceptedAt)
}
