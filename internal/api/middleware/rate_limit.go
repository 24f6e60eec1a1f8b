package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"clawqa/internal/pkg/errors"
	"clawqa/internal/platform/config"
	"clawqa/internal/platform/metrics"
	"clawqa/internal/ratelimit"

	"github.com/rs/zerolog/log"
)

// RateLimitMiddleware limits requests per bearer credential. It runs before
// authentication, so unknown credentials are limited too. Requests without a
// bearer credential are passed through to be rejected by auth.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	message string
}

func NewRateLimitMiddleware(limiter *ratelimit.Limiter, cfg config.RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		message: fmt.Sprintf("Rate limit exceeded. %d requests per %s.", cfg.Requests, cfg.Window),
	}
}

func (m *RateLimitMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential, ok := bearer(r)
		if !ok {
			next(w, r)
			return
		}

		sum := sha256.Sum256([]byte(credential))
		allowed, retryAfter, err := m.limiter.Allow(r.Context(), hex.EncodeToString(sum[:]))
		if err != nil {
			// fail open
			log.Error().Err(err).Msg("rate limit check failed")
			next(w, r)
			return
		}
		if !allowed {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, m.message, nil)
			return
		}

		next(w, r)
	}
}
