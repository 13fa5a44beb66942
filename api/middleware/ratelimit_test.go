package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/db/models"
)

type fakeLimiter struct {
	allowed bool
	count   int64
	err     error
	scopes  []string
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, _ int64, _ time.Duration) (bool, int64, error) {
	f.scopes = append(f.scopes, scope)
	return f.allowed, f.count, f.err
}

func authedRequest(accountID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/abc/confirm", nil)
	account := &models.MerchantAccount{ID: accountID}
	return req.WithContext(WithMerchantAccount(req.Context(), account))
}

func TestConfirmRateLimitAllowsUnderLimit(t *testing.T) {
	limiter := &fakeLimiter{allowed: true, count: 1}
	cfg := config.RateLimitConfig{ConfirmWindow: time.Minute, ConfirmLimit: 10}
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	accountID := uuid.New()
	resp := httptest.NewRecorder()
	ConfirmRateLimit(cfg, limiter, nil)(handler).ServeHTTP(resp, authedRequest(accountID))

	if !handlerCalled {
		t.Fatalf("handler should run when under the limit")
	}
	if len(limiter.scopes) != 1 || limiter.scopes[0] != "confirm:"+accountID.String() {
		t.Fatalf("unexpected limiter scopes %v", limiter.scopes)
	}
}

func TestConfirmRateLimitRejectsOverLimit(t *testing.T) {
	limiter := &fakeLimiter{allowed: false, count: 11}
	cfg := config.RateLimitConfig{ConfirmWindow: time.Minute, ConfirmLimit: 10}
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	resp := httptest.NewRecorder()
	ConfirmRateLimit(cfg, limiter, nil)(handler).ServeHTTP(resp, authedRequest(uuid.New()))

	if handlerCalled {
		t.Fatalf("handler should not run over the limit")
	}
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestConfirmRateLimitDisabledByConfig(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	cfg := config.RateLimitConfig{ConfirmWindow: 0, ConfirmLimit: 10}
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	httptestReq := authedRequest(uuid.New())
	ConfirmRateLimit(cfg, limiter, nil)(handler).ServeHTTP(httptest.NewRecorder(), httptestReq)

	if !handlerCalled {
		t.Fatalf("handler should run when rate limiting is disabled")
	}
	if len(limiter.scopes) != 0 {
		t.Fatalf("limiter should not be consulted when disabled")
	}
}

func TestConfirmRateLimitSkipsUnauthenticated(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	cfg := config.RateLimitConfig{ConfirmWindow: time.Minute, ConfirmLimit: 10}
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/abc/confirm", nil)
	ConfirmRateLimit(cfg, limiter, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !handlerCalled {
		t.Fatalf("unauthenticated requests should pass through")
	}
	if len(limiter.scopes) != 0 {
		t.Fatalf("limiter should not run without an account on the context")
	}
}
