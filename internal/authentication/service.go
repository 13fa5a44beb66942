package authentication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	retry "github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/internal/connectors"
	"github.com/velopay/payswitch-backend/internal/profiles"
	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/metrics"
	"github.com/velopay/payswitch-backend/pkg/secrets"
)

// ConnectorResolver resolves the active connector for a profile.
type ConnectorResolver interface {
	Resolve(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) (*models.ConnectorConfig, error)
}

// AuthenticatorFactory builds an authenticator from a runtime config.
// Overridable in tests.
type AuthenticatorFactory func(cfg connectors.Config) (connectors.Authenticator, error)

// ServiceParams groups dependencies for the authentication orchestrator.
type ServiceParams struct {
	Repo      Repository
	Registry  ConnectorResolver
	Secrets   secrets.Resolver
	Logger    *logger.Logger
	Metrics   *metrics.SwitchMetrics
	Retry     config.RetryConfig
	Connector config.ConnectorConfig
	Factory   AuthenticatorFactory
}

// Service drives the 3DS attempt state machine. A challenge never parks a
// goroutine: the pending attempt is persisted and the flow resumes by lookup
// when the callback arrives.
type Service struct {
	repo     Repository
	registry ConnectorResolver
	secrets  secrets.Resolver
	logg     *logger.Logger
	metrics  *metrics.SwitchMetrics
	retryCfg config.RetryConfig
	connCfg  config.ConnectorConfig
	factory  AuthenticatorFactory

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewService builds the orchestrator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Registry == nil {
		return nil, errors.New("connector resolver is required")
	}
	if params.Secrets == nil {
		return nil, errors.New("secrets resolver is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	factory := params.Factory
	if factory == nil {
		factory = connectors.NewAuthenticator
	}
	return &Service{
		repo:     params.Repo,
		registry: params.Registry,
		secrets:  params.Secrets,
		logg:     params.Logger,
		metrics:  params.Metrics,
		retryCfg: params.Retry,
		connCfg:  params.Connector,
		factory:  factory,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

// Result is the orchestrator's answer to the confirmation state machine.
type Result struct {
	AttemptID    uuid.UUID
	Status       enums.AuthenticationStatus
	ChallengeURL string
	Cavv         string
	ECI          string
	ErrorCode    string
	ErrorMessage string
}

func (s *Service) breaker(connectorName string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[connectorName]; ok {
		return cb
	}
	maxFails := s.connCfg.BreakerMaxFails
	if maxFails == 0 {
		maxFails = 5
	}
	openWindow := s.connCfg.BreakerOpenWindow
	if openWindow <= 0 {
		openWindow = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    connectorName,
		Timeout: openWindow,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
	})
	s.breakers[connectorName] = cb
	return cb
}

type requestSnapshot struct {
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	RequestorURL    string `json:"requestor_url"`
	RequestorAppURL string `json:"requestor_app_url,omitempty"`
	ForceChallenge  bool   `json:"force_challenge"`
}

// Authenticate runs one pass of the attempt state machine for the payment.
// Transient connector failures retry with exponential backoff only when the
// effective policy allows automatic retries; declines never retry.
func (s *Service) Authenticate(ctx context.Context, tx *gorm.DB, payment *models.Payment, policy *profiles.Policy) (*Result, error) {
	repo := s.repo.WithTx(tx)

	connectorCfg, err := s.registry.Resolve(ctx, payment.ProfileID, enums.ConnectorTypeAuthenticationProcessor)
	if err != nil {
		return nil, err
	}

	credential, err := s.secrets.Resolve(ctx, connectorCfg.CredentialRef)
	if err != nil {
		return nil, err
	}

	authenticator, err := s.factory(connectors.Config{
		Name:       connectorCfg.ConnectorName,
		Credential: credential,
		Metadata:   connectorCfg.Metadata,
		TestMode:   connectorCfg.TestMode,
		Timeout:    s.connCfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	requestorURL := ""
	requestorAppURL := ""
	if policy.AuthenticationDetails != nil {
		requestorURL = policy.AuthenticationDetails.ThreeDSRequestorURL
		if policy.AuthenticationDetails.ThreeDSRequestorAppURL != nil {
			requestorAppURL = *policy.AuthenticationDetails.ThreeDSRequestorAppURL
		}
	}

	prior, err := repo.CountByPayment(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting attempts")
	}

	snapshot, _ := json.Marshal(requestSnapshot{
		AmountCents:     payment.AmountCents,
		Currency:        string(payment.Currency),
		RequestorURL:    requestorURL,
		RequestorAppURL: requestorAppURL,
		ForceChallenge:  policy.Force3DSChallenge,
	})
	attempt := &models.AuthenticationAttempt{
		ID:             uuid.New(),
		PaymentID:      payment.ID,
		ConnectorName:  connectorCfg.ConnectorName,
		Status:         enums.AuthenticationStatusRequested,
		RequestPayload: snapshot,
		AttemptNumber:  prior + 1,
	}
	if err := repo.Create(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating attempt")
	}

	authReq := connectors.AuthRequest{
		PaymentID:         payment.ID,
		AmountCents:       payment.AmountCents,
		Currency:          payment.Currency,
		PaymentMethod:     payment.PaymentMethod,
		PaymentMethodType: payment.PaymentMethodType,
		PaymentMethodData: payment.PaymentMethodData,
		RequestorURL:      requestorURL,
		RequestorAppURL:   requestorAppURL,
		ForceChallenge:    policy.Force3DSChallenge,
		ReturnURL:         policy.ReturnURL,
	}

	resp, callErr := s.callWithRetry(ctx, connectorCfg.ConnectorName, authenticator, authReq, policy)
	if callErr != nil {
		attempt.Status = enums.AuthenticationStatusConnectorError
		message := callErr.Error()
		attempt.ErrorMessage = &message
		if err := repo.Update(ctx, attempt); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording connector error")
		}
		s.recordOutcome(ctx, connectorCfg.ConnectorName, "connector_error")
		return nil, callErr
	}

	return s.applyResponse(ctx, repo, attempt, resp)
}

func (s *Service) callWithRetry(ctx context.Context, connectorName string, authenticator connectors.Authenticator, req connectors.AuthRequest, policy *profiles.Policy) (*connectors.AuthResponse, error) {
	var maxRetries uint64
	if policy.IsAutoRetriesEnabled {
		maxRetries = s.retryCfg.MaxAttempts
		if policy.MaxAutoRetries > 0 && uint64(policy.MaxAutoRetries) < maxRetries {
			maxRetries = uint64(policy.MaxAutoRetries)
		}
	}

	baseBackoff := s.retryCfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 250 * time.Millisecond
	}
	backoff := retry.NewExponential(baseBackoff)
	if s.retryCfg.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(s.retryCfg.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(maxRetries, backoff)

	// One breaker execution spans the whole retry budget, so the breaker
	// counts failed authentication requests rather than the individual
	// connector calls made while retrying a single request.
	raw, err := s.breaker(connectorName).Execute(func() (interface{}, error) {
		var resp *connectors.AuthResponse
		doErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
			result, callErr := s.callOnce(ctx, connectorName, authenticator, req)
			if callErr != nil {
				if pkgerrors.IsRetryable(callErr) {
					return retry.RetryableError(callErr)
				}
				return callErr
			}
			resp = result
			return nil
		})
		if doErr != nil {
			return nil, doErr
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "authentication connector unavailable")
		}
		return nil, err
	}
	return raw.(*connectors.AuthResponse), nil
}

func (s *Service) callOnce(ctx context.Context, connectorName string, authenticator connectors.Authenticator, req connectors.AuthRequest) (*connectors.AuthResponse, error) {
	timeout := s.connCfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := authenticator.Authenticate(callCtx, req)
	s.metrics.ObserveConnectorCall(connectorName, "authenticate", time.Since(started))

	if err != nil {
		s.metrics.IncConnectorError(connectorName, "authenticate")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "authentication connector timed out")
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) applyResponse(ctx context.Context, repo Repository, attempt *models.AuthenticationAttempt, resp *connectors.AuthResponse) (*Result, error) {
	setOptional := func(dst **string, value string) {
		if value != "" {
			v := value
			*dst = &v
		}
	}
	setOptional(&attempt.ConnectorAuthID, resp.ConnectorAuthID)
	setOptional(&attempt.Cavv, resp.Cavv)
	setOptional(&attempt.ECI, resp.ECI)
	setOptional(&attempt.ThreeDSVersion, resp.ThreeDSVersion)

	var outcome string
	switch resp.Outcome {
	case connectors.AuthOutcomeFrictionlessPass:
		attempt.Status = enums.AuthenticationStatusFrictionlessPass
		outcome = "frictionless_pass"
	case connectors.AuthOutcomeChallenge:
		attempt.Status = enums.AuthenticationStatusChallengePending
		setOptional(&attempt.ChallengeURL, resp.ChallengeURL)
		setOptional(&attempt.ContinuationToken, resp.ContinuationToken)
		outcome = "challenge_pending"
	default:
		attempt.Status = enums.AuthenticationStatusFailed
		setOptional(&attempt.ErrorCode, resp.ErrorCode)
		setOptional(&attempt.ErrorMessage, resp.ErrorMessage)
		outcome = "failed"
	}

	if err := repo.Update(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording attempt outcome")
	}
	s.recordOutcome(ctx, attempt.ConnectorName, outcome)

	return &Result{
		AttemptID:    attempt.ID,
		Status:       attempt.Status,
		ChallengeURL: resp.ChallengeURL,
		Cavv:         resp.Cavv,
		ECI:          resp.ECI,
		ErrorCode:    resp.ErrorCode,
		ErrorMessage: resp.ErrorMessage,
	}, nil
}

func (s *Service) recordOutcome(ctx context.Context, connectorName, outcome string) {
	s.metrics.IncAuthentication(connectorName, outcome)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"connector": connectorName,
		"outcome":   outcome,
	})
	s.logg.Info(logCtx, "authentication attempt settled")
}

// ChallengeOutcome is the callback's verdict on a pending challenge.
type ChallengeOutcome struct {
	Passed       bool
	Cavv         string
	ECI          string
	ErrorCode    string
	ErrorMessage string
}

// ResumeAfterChallenge settles a challenge_pending attempt from the callback.
// The attempt is located by id; nothing was waiting in memory for it.
func (s *Service) ResumeAfterChallenge(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID, outcome ChallengeOutcome) (*models.AuthenticationAttempt, error) {
	repo := s.repo.WithTx(tx)
	attempt, err := repo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading attempt")
	}
	if attempt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("authentication attempt %s not found", attemptID))
	}
	if attempt.Status != enums.AuthenticationStatusChallengePending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("attempt %s is %s, not challenge_pending", attemptID, attempt.Status))
	}

	if outcome.Passed {
		attempt.Status = enums.AuthenticationStatusFrictionlessPass
		if outcome.Cavv != "" {
			cavv := outcome.Cavv
			attempt.Cavv = &cavv
		}
		if outcome.ECI != "" {
			eci := outcome.ECI
			attempt.ECI = &eci
		}
		s.recordOutcome(ctx, attempt.ConnectorName, "challenge_pass")
	} else {
		attempt.Status = enums.AuthenticationStatusFailed
		if outcome.ErrorCode != "" {
			code := outcome.ErrorCode
			attempt.ErrorCode = &code
		}
		if outcome.ErrorMessage != "" {
			message := outcome.ErrorMessage
			attempt.ErrorMessage = &message
		}
		s.recordOutcome(ctx, attempt.ConnectorName, "challenge_fail")
	}

	if err := repo.Update(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling challenge")
	}
	return attempt, nil
}

// CancelPending fails the payment's pending challenge attempt. Used when the
// customer abandons the challenge; an attempt is never left in requested or
// challenge_pending silently.
func (s *Service) CancelPending(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) (*models.AuthenticationAttempt, error) {
	repo := s.repo.WithTx(tx)
	attempt, err := repo.FindLatestByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading attempt")
	}
	if attempt == nil {
		return nil, nil
	}
	if attempt.Status.IsTerminal() {
		return attempt, nil
	}

	attempt.Status = enums.AuthenticationStatusFailed
	code := "challenge_abandoned"
	attempt.ErrorCode = &code
	message := "customer abandoned the challenge"
	attempt.ErrorMessage = &message
	if err := repo.Update(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling attempt")
	}
	s.recordOutcome(ctx, attempt.ConnectorName, "abandoned")
	return attempt, nil
}

// LatestAttempt returns the most recent attempt for the payment, nil when
// none exists.
func (s *Service) LatestAttempt(ctx context.Context, paymentID uuid.UUID) (*models.AuthenticationAttempt, error) {
	attempt, err := s.repo.FindLatestByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading attempt")
	}
	return attempt, nil
}

// FindAttempt exposes attempt lookup for the confirmation resume path.
func (s *Service) FindAttempt(ctx context.Context, attemptID uuid.UUID) (*models.AuthenticationAttempt, error) {
	attempt, err := s.repo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading attempt")
	}
	if attempt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("authentication attempt %s not found", attemptID))
	}
	return attempt, nil
}
