package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every pooled connection to :memory: would get its own empty database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// DiscardLogger returns a logger that drops everything below error.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// CreateTestUser creates a user whose password is TestPassword
func CreateTestUser(t *testing.T, st *store.Store, name string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         name,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestOrg creates an organization owned by owner, with the owner's
// admin membership and a free subscription.
func CreateTestOrg(t *testing.T, st *store.Store, owner *models.User) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:    "Test Organization",
		OwnerID: owner.ID,
		Plan:    models.PlanFree,
	}
	if err := st.CreateOrganization(context.Background(), org); err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// AddMember gives user an accepted membership with the given role.
func AddMember(t *testing.T, st *store.Store, orgID uuid.UUID, user *models.User, role models.Role) *models.Membership {
	t.Helper()

	now := time.Now()
	m := &models.Membership{
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           role,
		InvitedAt:      now,
		AcceptedAt:     &now,
	}
	if err := st.CreateMembership(context.Background(), m); err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}
	return m
}

// CreateTestPipeline creates a pipeline with a single stage.
func CreateTestPipeline(t *testing.T, st *store.Store, orgID uuid.UUID, name string) (*models.Pipeline, *models.Stage) {
	t.Helper()

	pipeline := &models.Pipeline{OrganizationID: orgID, Name: name}
	if err := st.CreatePipeline(context.Background(), pipeline); err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	stage := CreateTestStage(t, st, orgID, pipeline.ID, "New", 0)
	return pipeline, stage
}

func CreateTestStage(t *testing.T, st *store.Store, orgID, pipelineID uuid.UUID, name string, order int) *models.Stage {
	t.Helper()

	stage := &models.Stage{
		OrganizationID: orgID,
		PipelineID:     pipelineID,
		Name:           name,
		Order:          order,
	}
	if err := st.CreateStage(context.Background(), stage); err != nil {
		t.Fatalf("failed to create stage: %v", err)
	}
	return stage
}

func CreateTestLead(t *testing.T, st *store.Store, orgID, stageID uuid.UUID, name string) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		OrganizationID: orgID,
		StageID:        stageID,
		Name:           name,
	}
	if err := st.CreateLead(context.Background(), lead); err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}
	return lead
}

// Principal builds the caller identity a guard would resolve.
func Principal(orgID, userID uuid.UUID, role models.Role) *access.Principal {
	return &access.Principal{UserID: userID, OrganizationID: orgID, Role: role}
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body any, token string) *http.Request {
	t.Helper()

	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	Store      *store.Store
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Token      string
}

// NewTestContext creates a complete test setup: a database, an organization
// and its admin owner with a session token.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	st := store.New(db)
	jwtService := CreateTestJWTService()
	user := CreateTestUser(t, st, "Owner")
	org := CreateTestOrg(t, st, user)

	return &TestSetup{
		DB:         db,
		Store:      st,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Token:      GenerateTestToken(t, jwtService, user),
	}
}

// Admin is the owner's principal in the setup organization.
func (ts *TestSetup) Admin() *access.Principal {
	return Principal(ts.Org.ID, ts.User.ID, models.RoleAdmin)
}

// Member adds a new user with role to the setup organization.
func (ts *TestSetup) Member(t *testing.T, name string, role models.Role) (*models.User, *access.Principal) {
	t.Helper()

	user := CreateTestUser(t, ts.Store, name)
	AddMember(t, ts.Store, ts.Org.ID, user, role)
	return user, Principal(ts.Org.ID, user.ID, role)
}
