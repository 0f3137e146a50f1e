package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys struct {
	keys map[string]*models.APIKey
}

func (f *fakeKeys) Authenticate(_ context.Context, secret string) (*models.APIKey, error) {
	if key, ok := f.keys[secret]; ok {
		return key, nil
	}
	return nil, assert.AnError
}

func newSessionAuth() (*auth.Service, *auth.JWTService) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour)
	return auth.NewService(nil, jwtService, auth.NewMemorySessionStore(), nil, testutil.DiscardLogger()), jwtService
}

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestAuth_SessionToken(t *testing.T) {
	sessions, jwtService := newSessionAuth()
	userID := uuid.New()
	token, err := jwtService.GenerateToken(userID, "test@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		apply func(r *http.Request)
	}{
		{"authorization_header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token}) }},
		{"x_auth_token", func(r *http.Request) { r.Header.Set("X-Auth-Token", token) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(sessions, nil)(okHandler(t, func(r *http.Request) {
				assert.Equal(t, userID, GetUserID(r.Context()))
				require.NotNil(t, GetClaims(r.Context()))
				assert.Equal(t, "test@example.com", GetClaims(r.Context()).Email)
				assert.Nil(t, GetAPIKey(r.Context()))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			tt.apply(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "OK", rec.Body.String())
		})
	}
}

func TestAuth_Rejected(t *testing.T) {
	sessions, jwtService := newSessionAuth()
	other := auth.NewJWTService("other-secret", time.Hour)
	foreign, err := other.GenerateToken(uuid.New(), "x@example.com")
	require.NoError(t, err)

	revoked, err := jwtService.GenerateToken(uuid.New(), "y@example.com")
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(revoked)
	require.NoError(t, err)
	require.NoError(t, sessions.Logout(context.Background(), claims))

	tests := []struct {
		name   string
		header string
	}{
		{"no_token", ""},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong_signature", "Bearer " + foreign},
		{"revoked_session", "Bearer " + revoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(sessions, nil)(okHandler(t, func(*http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Unauthorized", body.Error)
		})
	}
}

func TestAuth_APIKey(t *testing.T) {
	sessions, _ := newSessionAuth()
	key := &models.APIKey{OrganizationID: uuid.New(), CreatedBy: uuid.New()}
	key.ID = uuid.New()
	keys := &fakeKeys{keys: map[string]*models.APIKey{"pdk_valid": key}}

	t.Run("valid key acts as its creator", func(t *testing.T) {
		handler := Auth(sessions, keys)(okHandler(t, func(r *http.Request) {
			assert.Equal(t, key.CreatedBy, GetUserID(r.Context()))
			assert.Equal(t, key, GetAPIKey(r.Context()))
			assert.Nil(t, GetClaims(r.Context()))
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set(APIKeyHeader, "pdk_valid")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		handler := Auth(sessions, keys)(okHandler(t, nil))

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set(APIKeyHeader, "pdk_unknown")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid API key")
	})

	t.Run("keys disabled", func(t *testing.T) {
		handler := Auth(sessions, nil)(okHandler(t, nil))

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set(APIKeyHeader, "pdk_valid")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSessionOnly(t *testing.T) {
	sessions, jwtService := newSessionAuth()
	key := &models.APIKey{OrganizationID: uuid.New(), CreatedBy: uuid.New()}
	key.ID = uuid.New()
	keys := &fakeKeys{keys: map[string]*models.APIKey{"pdk_valid": key}}

	handler := Auth(sessions, keys)(SessionOnly(okHandler(t, nil)))

	t.Run("api key is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set(APIKeyHeader, "pdk_valid")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("session passes", func(t *testing.T) {
		token, err := jwtService.GenerateToken(uuid.New(), "test@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, uuid.Nil, GetUserID(ctx))
	assert.Nil(t, GetClaims(ctx))
	assert.Nil(t, GetAPIKey(ctx))
	assert.Nil(t, GetPrincipal(ctx))
}
