package orgs

import (
	"context"
	"testing"

	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.TestSetup) {
	t.Helper()
	setup := testutil.NewTestContext(t)
	logger := testutil.DiscardLogger()
	return NewService(setup.Store, audit.NewRecorder(setup.Store, logger), logger), setup
}

func TestCreate(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, setup.User.ID, "  Acme  ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, models.PlanFree, org.Plan)

	m, err := setup.Store.GetMembership(ctx, org.ID, setup.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, m.Role)
	assert.NotNil(t, m.AcceptedAt)

	sub, err := setup.Store.GetSubscription(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, sub.Plan)

	_, err = svc.Create(ctx, setup.User.ID, " ")
	assert.ErrorIs(t, err, ErrNameRequired)

	orgs, err := svc.ListForUser(ctx, setup.User.ID)
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestOverview(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")
	_, viewer := setup.Member(t, "Vera", models.RoleViewer)

	ov, err := svc.Overview(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, setup.Org.ID, ov.Organization.ID)
	assert.Equal(t, models.RoleViewer, ov.UserRole)
	assert.Equal(t, int64(2), ov.Stats.Members)
	assert.Equal(t, int64(1), ov.Stats.Pipelines)
	assert.Equal(t, int64(1), ov.Stats.Leads)
}

func TestInvite(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	bob := testutil.CreateTestUser(t, setup.Store, "Bob")

	m, err := svc.Invite(ctx, setup.Admin(), bob.Email, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, m.Role)
	assert.Nil(t, m.AcceptedAt)
	require.NotNil(t, m.InvitedBy)
	assert.Equal(t, setup.User.ID, *m.InvitedBy)

	_, err = svc.Invite(ctx, setup.Admin(), bob.Email, models.RoleEditor)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.Invite(ctx, setup.Admin(), "nobody@example.com", models.RoleViewer)
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = svc.Invite(ctx, setup.Admin(), bob.Email, "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestInvite_RoleRules(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	_, editor := setup.Member(t, "Ed", models.RoleEditor)
	_, viewer := setup.Member(t, "Vera", models.RoleViewer)
	carol := testutil.CreateTestUser(t, setup.Store, "Carol")

	_, err := svc.Invite(ctx, viewer, carol.Email, models.RoleViewer)
	assert.ErrorIs(t, err, access.ErrInsufficientRole)

	_, err = svc.Invite(ctx, editor, carol.Email, models.RoleAdmin)
	assert.ErrorIs(t, err, access.ErrInsufficientRole)

	_, err = svc.Invite(ctx, editor, carol.Email, models.RoleEditor)
	assert.NoError(t, err)
}

func TestUpdateRoleAndRemove(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	bob, _ := setup.Member(t, "Bob", models.RoleViewer)

	m, err := svc.UpdateRole(ctx, setup.Admin(), bob.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, m.Role)

	_, err = svc.UpdateRole(ctx, setup.Admin(), setup.User.ID, models.RoleViewer)
	assert.ErrorIs(t, err, ErrOwnerProtected)
	assert.ErrorIs(t, svc.Remove(ctx, setup.Admin(), setup.User.ID), ErrOwnerProtected)

	require.NoError(t, svc.Remove(ctx, setup.Admin(), bob.ID))
	assert.ErrorIs(t, svc.Remove(ctx, setup.Admin(), bob.ID), ErrMemberNotFound)

	members, err := svc.ListMembers(ctx, setup.Admin())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, setup.User.ID, members[0].UserID)
}
