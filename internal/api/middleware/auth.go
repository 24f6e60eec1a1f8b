package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "clawqa/internal/api/context"
	"clawqa/internal/pkg/errors"
	"clawqa/internal/platform/auth"
	"clawqa/internal/platform/models"
	"clawqa/internal/workers"

	"github.com/rs/zerolog/log"
)

type APIKeyStore interface {
	GetByHash(ctx context.Context, hash string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id string) error
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware accepts "Authorization: Bearer <credential>" where the
// credential is either an API key (cqa_ prefix) or a session JWT.
type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	keys     APIKeyStore
	users    UserStore
	runner   *workers.Runner
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, keys APIKeyStore, users UserStore, runner *workers.Runner) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, keys: keys, users: users, runner: runner}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential, ok := bearer(r)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Valid API key required. Pass Authorization: Bearer <key>", nil)
			return
		}

		var claims *auth.Claims
		if auth.IsAPIKey(credential) {
			claims = m.apiKeyClaims(r.Context(), credential)
		} else if c, err := m.tokenSvc.ValidateToken(credential); err == nil {
			claims = c
		}
		if claims == nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired credentials", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}

func (m *AuthMiddleware) apiKeyClaims(ctx context.Context, key string) *auth.Claims {
	apiKey, err := m.keys.GetByHash(ctx, auth.HashAPIKey(key))
	if err != nil || apiKey.RevokedAt != nil {
		return nil
	}
	user, err := m.users.GetByID(ctx, apiKey.UserID)
	if err != nil {
		log.Warn().Err(err).Str("key_id", apiKey.ID).Msg("api key owner not found")
		return nil
	}

	m.runner.Go("apikey.touch", func(ctx context.Context) error {
		return m.keys.UpdateLastUsed(ctx, apiKey.ID)
	})

	return &auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role, KeyID: apiKey.ID}
}

func bearer(r *http.Request) (string, bool) {
	credential, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || credential == "" {
		return "", false
	}
	return credential, true
}
