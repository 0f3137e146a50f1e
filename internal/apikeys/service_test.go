package apikeys

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
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

func TestCreate_SecretShownOnce(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, setup.Admin(), "CI")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.KeyValue, Prefix))
	assert.Len(t, created.KeyValue, len(Prefix)+secretLength)
	assert.NotContains(t, created.Key.Preview, created.KeyValue[len(Prefix)+4:len(created.KeyValue)-4])

	keys, err := svc.List(ctx, setup.Admin())
	require.NoError(t, err)
	require.Len(t, keys, 1)

	raw, err := json.Marshal(keys)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), created.KeyValue)
	assert.NotContains(t, string(raw), keys[0].SecretHash)
}

func TestCreate_Validation(t *testing.T) {
	svc, setup := newTestService(t)
	_, viewer := setup.Member(t, "Vera", models.RoleViewer)

	_, err := svc.Create(context.Background(), setup.Admin(), "  ")
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.Create(context.Background(), viewer, "CI")
	assert.ErrorIs(t, err, access.ErrInsufficientRole)
}

func TestAuthenticate(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, setup.Admin(), "CI")
	require.NoError(t, err)

	key, err := svc.Authenticate(ctx, created.KeyValue)
	require.NoError(t, err)
	assert.Equal(t, created.Key.ID, key.ID)
	assert.NotNil(t, key.LastUsedAt)

	_, err = svc.Authenticate(ctx, created.KeyValue+"x")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = svc.Authenticate(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestDelete(t *testing.T) {
	svc, setup := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, setup.Admin(), "CI")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, setup.Admin(), created.Key.ID))
	assert.ErrorIs(t, svc.Delete(ctx, setup.Admin(), created.Key.ID), ErrKeyNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, setup.Admin(), uuid.New()), ErrKeyNotFound)

	_, err = svc.Authenticate(ctx, created.KeyValue)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, Prefix+"abcd...wxyz", preview(Prefix+"abcdefghijklmnopqrstuvwxyz"))
}
