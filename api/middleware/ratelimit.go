package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/pkg/config"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ConfirmRateLimit throttles payment confirmations per merchant account with
// a fixed window counter. It must run after APIKeyAuth so the account is on
// the context; unauthenticated requests pass through untouched.
func ConfirmRateLimit(cfg config.RateLimitConfig, limiter rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.ConfirmWindow <= 0 || cfg.ConfirmLimit <= 0 || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			accountID := MerchantAccountIDFromContext(ctx)
			if accountID == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := fmt.Sprintf("confirm:%s", accountID)
			allowed, count, err := limiter.FixedWindowAllow(ctx, scope, cfg.ConfirmLimit, cfg.ConfirmWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          cfg.ConfirmLimit,
						"window_seconds": int(cfg.ConfirmWindow.Seconds()),
					})
					logg.Warn(logCtx, "confirmation rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeRateLimit, "too many confirmation attempts, slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
