package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

const apiKeyHeader = "api-key"

// APIKeyAuthenticator resolves an api key to its merchant account.
type APIKeyAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, apiKey string) (*models.MerchantAccount, error)
}

// APIKeyAuth rejects requests without a valid api-key header and attaches the
// merchant account to the request context.
func APIKeyAuth(auth APIKeyAuthenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if apiKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "api-key header required"))
				return
			}

			account, err := auth.AuthenticateAPIKey(ctx, apiKey)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithMerchantAccount(ctx, account)
			if logg != nil {
				ctx = logg.WithMerchantID(ctx, account.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
