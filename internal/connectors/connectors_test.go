package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

func authRequest() AuthRequest {
	return AuthRequest{
		PaymentID:    uuid.New(),
		AmountCents:  4999,
		Currency:     enums.CurrencyUSD,
		RequestorURL: "https://merchant.example/3ds",
	}
}

func TestRegistryUnknownConnector(t *testing.T) {
	_, err := NewAuthenticator(Config{Name: "nope"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorNotConfigured, pkgerrors.As(err).Code())

	_, err = NewProcessor(Config{Name: "nope"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorNotConfigured, pkgerrors.As(err).Code())
}

func TestThreedsecureioFrictionless(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("APIKey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"threeDSServerTransID":"tid-1","transStatus":"Y","authenticationValue":"cavv","eci":"05","messageVersion":"2.2.0"}`))
	}))
	defer server.Close()

	auth, err := NewAuthenticator(Config{Name: "threedsecureio", Credential: "key-123", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := auth.Authenticate(context.Background(), authRequest())
	require.NoError(t, err)
	assert.Equal(t, AuthOutcomeFrictionlessPass, resp.Outcome)
	assert.Equal(t, "cavv", resp.Cavv)
	assert.Equal(t, "05", resp.ECI)
}

func TestThreedsecureioChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"threeDSServerTransID":"tid-2","transStatus":"C","acsURL":"https://acs.example/c"}`))
	}))
	defer server.Close()

	auth, err := NewAuthenticator(Config{Name: "threedsecureio", Credential: "k", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := auth.Authenticate(context.Background(), authRequest())
	require.NoError(t, err)
	assert.Equal(t, AuthOutcomeChallenge, resp.Outcome)
	assert.Equal(t, "https://acs.example/c", resp.ChallengeURL)
	assert.Equal(t, "tid-2", resp.ContinuationToken)
}

func TestThreedsecureioServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	auth, err := NewAuthenticator(Config{Name: "threedsecureio", Credential: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), authRequest())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorError, pkgerrors.As(err).Code())
	assert.True(t, pkgerrors.IsRetryable(err))
}

func TestThreedsecureioDeclineIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"305","errorDescription":"not enrolled"}`))
	}))
	defer server.Close()

	auth, err := NewAuthenticator(Config{Name: "threedsecureio", Credential: "k", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := auth.Authenticate(context.Background(), authRequest())
	require.NoError(t, err)
	assert.Equal(t, AuthOutcomeFailed, resp.Outcome)
	assert.Equal(t, "305", resp.ErrorCode)
}

func TestAmazonpayCapture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		w.Write([]byte(`{"chargeId":"ch-1","statusDetails":{"state":"Captured"}}`))
	}))
	defer server.Close()

	processor, err := NewProcessor(Config{Name: "amazonpay", Credential: "pk", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := processor.Authorize(context.Background(), AuthorizeRequest{
		PaymentID:   uuid.New(),
		AmountCents: 2500,
		Currency:    enums.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, "ch-1", resp.ConnectorPaymentID)
	assert.Equal(t, int64(2500), resp.AmountCapturedCents)
}

func TestAmazonpayDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chargeId":"ch-2","statusDetails":{"state":"Declined","reasonCode":"SoftDeclined"}}`))
	}))
	defer server.Close()

	processor, err := NewProcessor(Config{Name: "amazonpay", Credential: "pk", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := processor.Authorize(context.Background(), AuthorizeRequest{PaymentID: uuid.New(), AmountCents: 100, Currency: enums.CurrencyUSD})
	require.NoError(t, err)
	assert.False(t, resp.Approved)
	assert.Equal(t, "SoftDeclined", resp.DeclineCode)
}

func TestAmazonpayRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		w.Write([]byte(`{"refundId":"rf-1","statusDetails":{"state":"RefundInitiated"}}`))
	}))
	defer server.Close()

	processor, err := NewProcessor(Config{Name: "amazonpay", Credential: "pk", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := processor.Refund(context.Background(), RefundRequest{
		RefundID:           uuid.New(),
		ConnectorPaymentID: "ch-1",
		AmountCents:        500,
		Currency:           enums.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, "rf-1", resp.ConnectorRefundID)
}

func TestTestAuthScenarios(t *testing.T) {
	auth, err := NewAuthenticator(Config{Name: "testauth"})
	require.NoError(t, err)

	req := authRequest()
	req.AmountCents = 1000
	resp, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, AuthOutcomeFrictionlessPass, resp.Outcome)

	req.AmountCents = 1002
	resp, err = auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, AuthOutcomeChallenge, resp.Outcome)
	assert.NotEmpty(t, resp.ChallengeURL)

	req.AmountCents = 1003
	_, err = auth.Authenticate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorError, pkgerrors.As(err).Code())

	req.AmountCents = 1000
	req.ForceChallenge = true
	resp, err = auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, AuthOutcomeChallenge, resp.Outcome)
}
