package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreNotifier_WritesNotification(t *testing.T) {
	setup := testutil.NewTestContext(t)
	ctx := context.Background()
	bob, bobPrincipal := setup.Member(t, "Bob", models.RoleViewer)

	mention := notify.Mention{
		OrganizationID: setup.Org.ID,
		LeadID:         uuid.New(),
		CommentID:      uuid.New(),
		AuthorID:       setup.User.ID,
		UserID:         bob.ID,
	}
	require.NoError(t, notify.NewStoreNotifier(setup.Store).NotifyMention(ctx, mention))

	svc := notify.NewService(setup.Store, testutil.DiscardLogger())
	list, err := svc.List(ctx, bobPrincipal, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationKindMention, list[0].Kind)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(list[0].Payload, &payload))
	assert.Equal(t, mention.LeadID.String(), payload["leadId"])
	assert.Equal(t, mention.CommentID.String(), payload["commentId"])
	assert.Equal(t, setup.User.ID.String(), payload["authorId"])

	// The author sees none of it.
	own, err := svc.List(ctx, setup.Admin(), false)
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestService_MarkRead(t *testing.T) {
	setup := testutil.NewTestContext(t)
	ctx := context.Background()
	bob, bobPrincipal := setup.Member(t, "Bob", models.RoleViewer)
	svc := notify.NewService(setup.Store, testutil.DiscardLogger())

	require.NoError(t, notify.NewStoreNotifier(setup.Store).NotifyMention(ctx, notify.Mention{
		OrganizationID: setup.Org.ID,
		AuthorID:       setup.User.ID,
		UserID:         bob.ID,
	}))

	unread, err := svc.List(ctx, bobPrincipal, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	err = svc.MarkRead(ctx, setup.Admin(), unread[0].ID)
	assert.ErrorIs(t, err, notify.ErrNotificationNotFound)

	require.NoError(t, svc.MarkRead(ctx, bobPrincipal, unread[0].ID))

	unread, err = svc.List(ctx, bobPrincipal, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, svc.MarkRead(ctx, bobPrincipal, uuid.New()), notify.ErrNotificationNotFound)
}
