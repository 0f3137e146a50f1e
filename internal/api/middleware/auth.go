package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/database/models"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	ClaimsKey    contextKey = "claims"
	APIKeyKey    contextKey = "api_key"
	PrincipalKey contextKey = "principal"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "token"

// APIKeyHeader carries an organization API key secret.
const APIKeyHeader = "X-API-Key"

// SessionAuthenticator validates session tokens.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// KeyAuthenticator resolves API key secrets.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, secret string) (*models.APIKey, error)
}

// Auth accepts a session token (Authorization bearer, token cookie or
// X-Auth-Token) or an API key. An API key authenticates as the user who
// created it. keys may be nil to disable API key authentication.
func Auth(sessions SessionAuthenticator, keys KeyAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if secret := r.Header.Get(APIKeyHeader); secret != "" && keys != nil {
				key, err := keys.Authenticate(ctx, secret)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				ctx = context.WithValue(ctx, UserIDKey, key.CreatedBy)
				ctx = context.WithValue(ctx, APIKeyKey, key)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token := sessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := sessions.Authenticate(ctx, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionOnly rejects API key requests on account-wide routes.
func SessionOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAPIKey(r.Context()) != nil {
			writeError(w, http.StatusForbidden, "API keys cannot access this endpoint")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	// 1. Authorization header (API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// 2. Cookie (browser)
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// 3. X-Auth-Token header (localStorage fallback for AJAX)
	return r.Header.Get("X-Auth-Token")
}

func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetClaims returns the session claims, or nil for API key requests.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// GetAPIKey returns the authenticating API key, or nil for session requests.
func GetAPIKey(ctx context.Context) *models.APIKey {
	key, _ := ctx.Value(APIKeyKey).(*models.APIKey)
	return key
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message})
}
