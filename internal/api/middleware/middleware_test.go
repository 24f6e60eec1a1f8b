package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "clawqa/internal/api/context"
	"clawqa/internal/pkg/errors"
	"clawqa/internal/platform/auth"
	"clawqa/internal/platform/config"
	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"
	"clawqa/internal/ratelimit"
	"clawqa/internal/workers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys struct {
	byHash  map[string]*models.APIKey
	touched chan string
}

func (f *fakeKeys) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	k, ok := f.byHash[hash]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return k, nil
}

func (f *fakeKeys) UpdateLastUsed(ctx context.Context, id string) error {
	f.touched <- id
	return nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func echoClaims(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	json.NewEncoder(w).Encode(claims)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "secret", AccessTokenTTL: time.Minute})
	key, hash, prefix, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	revokedKey, revokedHash, _, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	revokedAt := time.Now().Unix()

	keys := &fakeKeys{
		byHash: map[string]*models.APIKey{
			hash:        {ID: "key_1", UserID: "usr_1", KeyPrefix: prefix},
			revokedHash: {ID: "key_2", UserID: "usr_1", RevokedAt: &revokedAt},
		},
		touched: make(chan string, 1),
	}
	users := fakeUsers{"usr_1": {ID: "usr_1", Email: "a@example.com", Role: "agent-owner"}}
	runner := workers.NewRunner()
	m := NewAuthMiddleware(tokens, keys, users, runner)

	jwt, err := tokens.GenerateAccessToken("usr_9", "admin", "b@example.com")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"api key", "Bearer " + key, http.StatusOK, "usr_1"},
		{"session token", "Bearer " + jwt, http.StatusOK, "usr_9"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"unknown api key", "Bearer cqa_deadbeef", http.StatusUnauthorized, ""},
		{"revoked api key", "Bearer " + revokedKey, http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			m.Handle(echoClaims)(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				var body errors.ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, errors.ErrCodeUnauthorized, body.Code)
				return
			}
			var claims auth.Claims
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&claims))
			assert.Equal(t, tt.wantUser, claims.UserID)
		})
	}

	runner.Wait()
	assert.Equal(t, "key_1", <-keys.touched)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.RateLimitConfig{Requests: 2, Window: time.Minute}
	m := NewRateLimitMiddleware(ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg), cfg)
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bugs", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		m.Handle(ok)(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("Bearer k1").Code)
	assert.Equal(t, http.StatusNoContent, do("Bearer k1").Code)

	limited := do("Bearer k1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	var body errors.ErrorResponse
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	assert.Equal(t, errors.ErrCodeRateLimitExceeded, body.Code)

	assert.Equal(t, http.StatusNoContent, do("Bearer k2").Code, "other credentials are unaffected")
	assert.Equal(t, http.StatusNoContent, do("").Code, "requests without a credential are left to auth")
}
