package authentication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/internal/connectors"
	"github.com/velopay/payswitch-backend/internal/profiles"
	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/secrets"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	attemptsTable := `
CREATE TABLE IF NOT EXISTS authentication_attempts (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  connector_name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'not_started',
  request_payload TEXT,
  connector_auth_id TEXT,
  cavv TEXT,
  eci TEXT,
  three_ds_version TEXT,
  continuation_token TEXT,
  challenge_url TEXT,
  error_code TEXT,
  error_message TEXT,
  attempt_number INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	require.NoError(t, db.Exec(attemptsTable).Error)

	return db
}

type stubResolver struct {
	cfg *models.ConnectorConfig
}

func (s *stubResolver) Resolve(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) (*models.ConnectorConfig, error) {
	return s.cfg, nil
}

// scriptedAuthenticator replays one canned response per call and records what
// it was asked.
type scriptedAuthenticator struct {
	calls    int
	lastReq  connectors.AuthRequest
	script   []func() (*connectors.AuthResponse, error)
	fallback func() (*connectors.AuthResponse, error)
}

func (s *scriptedAuthenticator) Authenticate(ctx context.Context, req connectors.AuthRequest) (*connectors.AuthResponse, error) {
	s.lastReq = req
	step := s.fallback
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++
	return step()
}

func passResponse() (*connectors.AuthResponse, error) {
	return &connectors.AuthResponse{
		Outcome:         connectors.AuthOutcomeFrictionlessPass,
		ConnectorAuthID: "auth_123",
		Cavv:            "cavv-value",
		ECI:             "05",
		ThreeDSVersion:  "2.2.0",
	}, nil
}

func transientError() (*connectors.AuthResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeConnectorError, "gateway timeout")
}

func newAuthService(t *testing.T, db *gorm.DB, stub *scriptedAuthenticator) *Service {
	t.Helper()
	credRef := "api_key"
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(db),
		Registry: &stubResolver{cfg: &models.ConnectorConfig{
			ID:            uuid.New(),
			ConnectorName: "threedsecureio",
			ConnectorType: enums.ConnectorTypeAuthenticationProcessor,
			CredentialRef: credRef,
		}},
		Secrets: secrets.Static{"api_key": "sk_test_123"},
		Logger:  logger.New(logger.Options{ServiceName: "authentication-test"}),
		Retry: config.RetryConfig{
			MaxAttempts: 2,
			BaseBackoff: time.Millisecond,
			MaxBackoff:  2 * time.Millisecond,
		},
		Connector: config.ConnectorConfig{
			CallTimeout:       time.Second,
			BreakerMaxFails:   2,
			BreakerOpenWindow: time.Minute,
		},
		Factory: func(cfg connectors.Config) (connectors.Authenticator, error) {
			return stub, nil
		},
	})
	require.NoError(t, err)
	return svc
}

func authTestPayment() *models.Payment {
	return &models.Payment{
		ID:          uuid.New(),
		ProfileID:   uuid.New(),
		AmountCents: 4999,
		Currency:    enums.CurrencyUSD,
	}
}

func defaultPolicy() *profiles.Policy {
	return &profiles.Policy{}
}

func loadAttempt(t *testing.T, db *gorm.DB, id uuid.UUID) *models.AuthenticationAttempt {
	t.Helper()
	var stored models.AuthenticationAttempt
	require.NoError(t, db.Where("id = ?", id).First(&stored).Error)
	return &stored
}

func TestAuthenticateFrictionlessPass(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: passResponse}
	svc := newAuthService(t, db, stub)

	result, err := svc.Authenticate(context.Background(), db, authTestPayment(), defaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusFrictionlessPass, result.Status)
	assert.Equal(t, "cavv-value", result.Cavv)
	assert.Equal(t, 1, stub.calls)

	stored := loadAttempt(t, db, result.AttemptID)
	assert.Equal(t, enums.AuthenticationStatusFrictionlessPass, stored.Status)
	assert.Equal(t, 1, stored.AttemptNumber)
	require.NotNil(t, stored.Cavv)
	assert.Equal(t, "cavv-value", *stored.Cavv)
}

func TestAuthenticateForcedChallenge(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: func() (*connectors.AuthResponse, error) {
		return &connectors.AuthResponse{
			Outcome:           connectors.AuthOutcomeChallenge,
			ChallengeURL:      "https://acs.example.com/challenge",
			ContinuationToken: "trans-id-9",
		}, nil
	}}
	svc := newAuthService(t, db, stub)

	policy := defaultPolicy()
	policy.Force3DSChallenge = true

	result, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusChallengePending, result.Status)
	assert.Equal(t, "https://acs.example.com/challenge", result.ChallengeURL)
	assert.True(t, stub.lastReq.ForceChallenge)

	stored := loadAttempt(t, db, result.AttemptID)
	assert.Equal(t, enums.AuthenticationStatusChallengePending, stored.Status)
	require.NotNil(t, stored.ContinuationToken)
	assert.Equal(t, "trans-id-9", *stored.ContinuationToken)
}

func TestAuthenticateRetriesTransientFailures(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{
		script:   []func() (*connectors.AuthResponse, error){transientError, transientError},
		fallback: passResponse,
	}
	svc := newAuthService(t, db, stub)

	policy := defaultPolicy()
	policy.IsAutoRetriesEnabled = true

	result, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusFrictionlessPass, result.Status)
	assert.Equal(t, 3, stub.calls)
}

func TestAuthenticateNoRetryWhenDisabled(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: transientError}
	svc := newAuthService(t, db, stub)

	_, err := svc.Authenticate(context.Background(), db, authTestPayment(), defaultPolicy())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorError, pkgerrors.As(err).Code())
	assert.Equal(t, 1, stub.calls)

	var stored models.AuthenticationAttempt
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, enums.AuthenticationStatusConnectorError, stored.Status)
}

func TestAuthenticateRetryExhaustion(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: transientError}
	svc := newAuthService(t, db, stub)

	policy := defaultPolicy()
	policy.IsAutoRetriesEnabled = true

	_, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorError, pkgerrors.As(err).Code())
	// initial call plus the configured two retries
	assert.Equal(t, 3, stub.calls)
}

func TestAuthenticateDeclineNeverRetries(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: func() (*connectors.AuthResponse, error) {
		return &connectors.AuthResponse{
			Outcome:      connectors.AuthOutcomeFailed,
			ErrorCode:    "auth_failed",
			ErrorMessage: "cardholder not enrolled",
		}, nil
	}}
	svc := newAuthService(t, db, stub)

	policy := defaultPolicy()
	policy.IsAutoRetriesEnabled = true

	result, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusFailed, result.Status)
	assert.Equal(t, "auth_failed", result.ErrorCode)
	assert.Equal(t, 1, stub.calls)
}

func TestAuthenticateNumbersRepeatAttempts(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: passResponse}
	svc := newAuthService(t, db, stub)
	payment := authTestPayment()

	first, err := svc.Authenticate(context.Background(), db, payment, defaultPolicy())
	require.NoError(t, err)
	second, err := svc.Authenticate(context.Background(), db, payment, defaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 1, loadAttempt(t, db, first.AttemptID).AttemptNumber)
	assert.Equal(t, 2, loadAttempt(t, db, second.AttemptID).AttemptNumber)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{fallback: transientError}
	svc := newAuthService(t, db, stub)
	policy := defaultPolicy()

	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
		require.Error(t, err)
	}

	// the breaker is open: the connector is not called again
	_, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorError, pkgerrors.As(err).Code())
	assert.Equal(t, 2, stub.calls)
}

func TestBreakerCountsRequestsNotRetries(t *testing.T) {
	db := setupAuthTestDB(t)
	stub := &scriptedAuthenticator{
		script:   []func() (*connectors.AuthResponse, error){transientError, transientError, transientError},
		fallback: passResponse,
	}
	svc := newAuthService(t, db, stub)

	policy := defaultPolicy()
	policy.IsAutoRetriesEnabled = true

	// three failed calls inside one request count as a single breaker failure
	_, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.Error(t, err)
	assert.Equal(t, 3, stub.calls)

	// the breaker stays closed, so the next request still reaches the connector
	result, err := svc.Authenticate(context.Background(), db, authTestPayment(), policy)
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusFrictionlessPass, result.Status)
	assert.Equal(t, 4, stub.calls)
}

func challengePendingAttempt(t *testing.T, db *gorm.DB, svc *Service) *Result {
	t.Helper()
	stubResultURL := "https://acs.example.com/challenge"
	pending := &scriptedAuthenticator{fallback: func() (*connectors.AuthResponse, error) {
		return &connectors.AuthResponse{
			Outcome:           connectors.AuthOutcomeChallenge,
			ChallengeURL:      stubResultURL,
			ContinuationToken: "trans-id-1",
		}, nil
	}}
	svc.factory = func(cfg connectors.Config) (connectors.Authenticator, error) {
		return pending, nil
	}
	result, err := svc.Authenticate(context.Background(), db, authTestPayment(), defaultPolicy())
	require.NoError(t, err)
	require.Equal(t, enums.AuthenticationStatusChallengePending, result.Status)
	return result
}

func TestResumeAfterChallengePass(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db, &scriptedAuthenticator{fallback: passResponse})
	pending := challengePendingAttempt(t, db, svc)

	attempt, err := svc.ResumeAfterChallenge(context.Background(), db, pending.AttemptID, ChallengeOutcome{
		Passed: true,
		Cavv:   "challenge-cavv",
		ECI:    "05",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusFrictionlessPass, attempt.Status)

	stored := loadAttempt(t, db, pending.AttemptID)
	require.NotNil(t, stored.Cavv)
	assert.Equal(t, "challenge-cavv", *stored.Cavv)
}

func TestResumeAfterChallengeFail(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db, &scriptedAuthenticator{fallback: passResponse})
	pending := challengePendingAttempt(t, db, svc)

	attempt, err := svc.ResumeAfterChallenge(context.Background(), db, pending.AttemptID, ChallengeOutcome{
		Passed:       false,
		ErrorCode:    "challenge_failed",
		ErrorMessage: "otp mismatch",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AuthenticationStatusFailed, attempt.Status)
}

func TestResumeRequiresPendingChallenge(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db, &scriptedAuthenticator{fallback: passResponse})

	settled, err := svc.Authenticate(context.Background(), db, authTestPayment(), defaultPolicy())
	require.NoError(t, err)

	_, err = svc.ResumeAfterChallenge(context.Background(), db, settled.AttemptID, ChallengeOutcome{Passed: true})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	_, err = svc.ResumeAfterChallenge(context.Background(), db, uuid.New(), ChallengeOutcome{Passed: true})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCancelPendingFailsAttempt(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db, &scriptedAuthenticator{fallback: passResponse})
	pending := challengePendingAttempt(t, db, svc)
	stored := loadAttempt(t, db, pending.AttemptID)

	attempt, err := svc.CancelPending(context.Background(), db, stored.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, enums.AuthenticationStatusFailed, attempt.Status)
	require.NotNil(t, attempt.ErrorCode)
	assert.Equal(t, "challenge_abandoned", *attempt.ErrorCode)

	// no pending attempt for an unknown payment
	attempt, err = svc.CancelPending(context.Background(), db, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, attempt)
}

func TestCancelPendingLeavesSettledAttemptsAlone(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db, &scriptedAuthenticator{fallback: passResponse})
	payment := authTestPayment()

	settled, err := svc.Authenticate(context.Background(), db, payment, defaultPolicy())
	require.NoError(t, err)

	attempt, err := svc.CancelPending(context.Background(), db, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, settled.AttemptID, attempt.ID)
	assert.Equal(t, enums.AuthenticationStatusFrictionlessPass, attempt.Status)
}
