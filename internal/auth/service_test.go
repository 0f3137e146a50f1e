package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubOrgCreator struct {
	st  *store.Store
	err error
}

func (c *stubOrgCreator) Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Organization, error) {
	if c.err != nil {
		return nil, c.err
	}
	org := &models.Organization{Name: name, OwnerID: ownerID}
	return org, c.st.CreateOrganization(ctx, org)
}

func newTestService(t *testing.T, orgErr error) (*auth.Service, *store.Store) {
	t.Helper()
	st := store.New(testutil.SetupTestDB(t))
	svc := auth.NewService(st, testutil.CreateTestJWTService(), auth.NewMemorySessionStore(),
		&stubOrgCreator{st: st, err: orgErr}, testutil.DiscardLogger())
	return svc, st
}

func TestSignup_CreatesDefaultOrganization(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, auth.SignupInput{Email: "  Alice@Example.com ", Password: "correct-horse", Name: "Alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)

	profile, err := svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	require.Len(t, profile.Organizations, 1)
	assert.Equal(t, "Alice's Organization", profile.Organizations[0].Name)
	assert.Equal(t, models.RoleAdmin, profile.Organizations[0].Role)

	_, err = svc.Signup(ctx, auth.SignupInput{Email: "alice@example.com", Password: "another-pass", Name: "A"})
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestSignup_ConcurrentDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	svc := auth.NewService(st, testutil.CreateTestJWTService(), auth.NewMemorySessionStore(),
		&stubOrgCreator{st: st}, testutil.DiscardLogger())

	// Another signup for the same address lands right after the lookup misses.
	inserted := false
	err := db.Callback().Query().After("gorm:query").Register("test:concurrent_signup", func(tx *gorm.DB) {
		if inserted || tx.Statement.Table != "users" || !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return
		}
		inserted = true
		other := &models.User{Email: "carol@example.com", PasswordHash: "x", Name: "Other Carol"}
		require.NoError(t, db.Session(&gorm.Session{NewDB: true}).Create(other).Error)
	})
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), auth.SignupInput{Email: "Carol@example.com", Password: "correct-horse", Name: "Carol"})
	require.True(t, inserted)
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestSignup_OrganizationFailureKeepsUser(t *testing.T) {
	svc, _ := newTestService(t, errors.New("db hiccup"))
	ctx := context.Background()

	resp, err := svc.Signup(ctx, auth.SignupInput{Email: "bob@example.com", Password: "correct-horse", Name: "Bob"})
	require.NoError(t, err)

	profile, err := svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.Organizations)
}

func TestLogin(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, st, "Carol")

	resp, err := svc.Login(ctx, auth.LoginInput{Email: user.Email, Password: testutil.TestPassword})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)

	_, err = svc.Login(ctx, auth.LoginInput{Email: user.Email, Password: "wrong"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "ghost@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, st, "Dan")

	resp, err := svc.Login(ctx, auth.LoginInput{Email: user.Email, Password: testutil.TestPassword})
	require.NoError(t, err)

	claims, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
}

func TestMe_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Me(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
