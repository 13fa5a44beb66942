package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/db/models"
)

type contextKey string

const merchantAccountKey contextKey = "merchant_account"

// WithMerchantAccount stores the authenticated account on the context.
func WithMerchantAccount(ctx context.Context, account *models.MerchantAccount) context.Context {
	return context.WithValue(ctx, merchantAccountKey, account)
}

// MerchantAccountFromContext returns the authenticated account, nil when the
// request skipped api-key auth.
func MerchantAccountFromContext(ctx context.Context) *models.MerchantAccount {
	account, _ := ctx.Value(merchantAccountKey).(*models.MerchantAccount)
	return account
}

// MerchantAccountIDFromContext returns the authenticated account id as a
// string, empty when unauthenticated. Used for idempotency scoping.
func MerchantAccountIDFromContext(ctx context.Context) string {
	account := MerchantAccountFromContext(ctx)
	if account == nil {
		return ""
	}
	if account.ID == uuid.Nil {
		return ""
	}
	return account.ID.String()
}
