package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/internal/authentication"
	"github.com/velopay/payswitch-backend/internal/connectors"
	"github.com/velopay/payswitch-backend/internal/mandates"
	"github.com/velopay/payswitch-backend/internal/profiles"
	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/metrics"
	"github.com/velopay/payswitch-backend/pkg/outbox"
	"github.com/velopay/payswitch-backend/pkg/outbox/payloads"
	"github.com/velopay/payswitch-backend/pkg/secrets"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type policyResolver interface {
	Resolve(ctx context.Context, accountID, profileID uuid.UUID) (*profiles.Policy, error)
}

type connectorResolver interface {
	Resolve(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) (*models.ConnectorConfig, error)
}

type authOrchestrator interface {
	Authenticate(ctx context.Context, tx *gorm.DB, payment *models.Payment, policy *profiles.Policy) (*authentication.Result, error)
	ResumeAfterChallenge(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID, outcome authentication.ChallengeOutcome) (*models.AuthenticationAttempt, error)
	CancelPending(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) (*models.AuthenticationAttempt, error)
	LatestAttempt(ctx context.Context, paymentID uuid.UUID) (*models.AuthenticationAttempt, error)
	FindAttempt(ctx context.Context, attemptID uuid.UUID) (*models.AuthenticationAttempt, error)
}

type mandateEngine interface {
	Materialize(ctx context.Context, tx *gorm.DB, validated *mandates.ValidatedMandate, payment *models.Payment) (*models.Mandate, error)
	RecordConnectorMandate(ctx context.Context, tx *gorm.DB, mandateID uuid.UUID, connectorName, connectorMandateID string) error
	EnsureChargeable(ctx context.Context, tx *gorm.DB, mandateID uuid.UUID, amountCents int64) error
	ApplyCharge(ctx context.Context, tx *gorm.DB, mandateID uuid.UUID, amountCents int64) error
}

// ProcessorFactory builds a payment processor from a runtime config.
// Overridable in tests.
type ProcessorFactory func(cfg connectors.Config) (connectors.Processor, error)

// ServiceParams groups dependencies for the confirmation state machine.
type ServiceParams struct {
	Repo      Repository
	Profiles  policyResolver
	Registry  connectorResolver
	Auth      authOrchestrator
	Mandates  mandateEngine
	Secrets   secrets.Resolver
	Outbox    *outbox.Service
	Tx        txRunner
	Logger    *logger.Logger
	Metrics   *metrics.SwitchMetrics
	Connector config.ConnectorConfig
	Factory   ProcessorFactory
}

// Service drives a payment from created to a terminal status. Terminal rows
// replay their stored outcome; the processor is forwarded to at most once per
// payment.
type Service struct {
	repo     Repository
	profiles policyResolver
	registry connectorResolver
	auth     authOrchestrator
	mandates mandateEngine
	secrets  secrets.Resolver
	outbox   *outbox.Service
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.SwitchMetrics
	connCfg  config.ConnectorConfig
	factory  ProcessorFactory
}

// NewService builds the confirmation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("policy resolver is required")
	}
	if params.Registry == nil {
		return nil, errors.New("connector resolver is required")
	}
	if params.Auth == nil {
		return nil, errors.New("authentication orchestrator is required")
	}
	if params.Mandates == nil {
		return nil, errors.New("mandate engine is required")
	}
	if params.Secrets == nil {
		return nil, errors.New("secrets resolver is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}
	if params.Tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	factory := params.Factory
	if factory == nil {
		factory = connectors.NewProcessor
	}
	return &Service{
		repo:     params.Repo,
		profiles: params.Profiles,
		registry: params.Registry,
		auth:     params.Auth,
		mandates: params.Mandates,
		secrets:  params.Secrets,
		outbox:   params.Outbox,
		tx:       params.Tx,
		logg:     params.Logger,
		metrics:  params.Metrics,
		connCfg:  params.Connector,
		factory:  factory,
	}, nil
}

// CreateInput describes a new payment.
type CreateInput struct {
	CustomerID        *string
	AmountCents       int64
	Currency          enums.Currency
	PaymentMethod     enums.PaymentMethod
	PaymentMethodType enums.PaymentMethodType
	PaymentMethodData json.RawMessage
	SetupFutureUsage  enums.SetupFutureUsage
	PaymentType       enums.PaymentType
	MandateID         *uuid.UUID
}

func (in CreateInput) validate() error {
	if in.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !in.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", in.Currency))
	}
	if !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment_method %q", in.PaymentMethod))
	}
	if !in.PaymentMethodType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment_method_type %q", in.PaymentMethodType))
	}
	if in.SetupFutureUsage != "" && !in.SetupFutureUsage.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid setup_future_usage %q", in.SetupFutureUsage))
	}
	if in.PaymentType != "" && !in.PaymentType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment_type %q", in.PaymentType))
	}
	if in.PaymentType == enums.PaymentTypeRecurring && in.MandateID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recurring payments require mandate_id")
	}
	return nil
}

// Create persists a payment awaiting confirmation.
func (s *Service) Create(ctx context.Context, accountID, profileID uuid.UUID, input CreateInput) (*models.Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	setupFutureUsage := input.SetupFutureUsage
	if setupFutureUsage == "" {
		setupFutureUsage = enums.SetupFutureUsageNone
	}
	paymentType := input.PaymentType
	if paymentType == "" {
		paymentType = enums.PaymentTypeNormal
	}
	payment := &models.Payment{
		ID:                uuid.New(),
		MerchantAccountID: accountID,
		ProfileID:         profileID,
		CustomerID:        input.CustomerID,
		AmountCents:       input.AmountCents,
		Currency:          input.Currency,
		PaymentMethod:     input.PaymentMethod,
		PaymentMethodType: input.PaymentMethodType,
		PaymentMethodData: input.PaymentMethodData,
		SetupFutureUsage:  setupFutureUsage,
		PaymentType:       paymentType,
		Status:            enums.PaymentStatusRequiresConfirmation,
		MandateID:         input.MandateID,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating payment")
	}
	return payment, nil
}

// Get returns a payment scoped to the account.
func (s *Service) Get(ctx context.Context, accountID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindForAccount(ctx, accountID, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment %s not found", paymentID))
	}
	return payment, nil
}

// NextAction tells the caller what the customer must do to proceed.
type NextAction struct {
	Type        string    `json:"type"`
	RedirectURL string    `json:"redirect_to_url,omitempty"`
	AttemptID   uuid.UUID `json:"attempt_id,omitempty"`
}

// ConfirmResult is the confirmation outcome returned to the API layer.
type ConfirmResult struct {
	Payment    *models.Payment
	NextAction *NextAction
}

// ConfirmRequest carries the optional mandate data supplied at confirm time.
type ConfirmRequest struct {
	MandateData *mandates.MandateData
}

// Confirm advances the payment. Re-confirming a terminal payment replays the
// stored outcome without touching any connector; re-confirming a pending
// challenge returns the same customer action.
func (s *Service) Confirm(ctx context.Context, accountID, paymentID uuid.UUID, req ConfirmRequest) (*ConfirmResult, error) {
	payment, err := s.Get(ctx, accountID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status.IsTerminal() {
		s.metrics.IncConfirmation("replayed")
		return &ConfirmResult{Payment: payment}, nil
	}

	if payment.Status == enums.PaymentStatusRequiresCustomerAction {
		return s.pendingResult(ctx, payment)
	}

	policy, err := s.profiles.Resolve(ctx, accountID, payment.ProfileID)
	if err != nil {
		return nil, err
	}

	// Mandate gate runs before any connector traffic.
	validated, err := s.mandateGate(payment, req)
	if err != nil {
		return nil, err
	}

	needsAuth := policy.Force3DSChallenge ||
		(payment.PaymentMethodType.Requires3DS() && !policy.ConnectorAgnosticMITEnabled)

	var result *ConfirmResult
	var lostClaim bool
	var connectorErr error
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Claim the payment before any connector traffic. Exactly one of
		// N concurrent confirms moves the row into authenticating; the
		// losers re-read whatever state the winner left behind.
		claimed, err := repo.Transition(ctx, payment.ID, enums.PaymentStatusAuthenticating,
			enums.PaymentStatusRequiresConfirmation, enums.PaymentStatusCreated)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming payment")
		}
		if !claimed {
			lostClaim = true
			return nil
		}
		payment.Status = enums.PaymentStatusAuthenticating

		if payment.PaymentType == enums.PaymentTypeRecurring && payment.MandateID != nil {
			if err := s.mandates.EnsureChargeable(ctx, tx, *payment.MandateID, payment.AmountCents); err != nil {
				return err
			}
		}

		if !needsAuth {
			var err error
			result, err = s.settle(ctx, tx, payment, validated, "", "")
			return err
		}

		authResult, err := s.auth.Authenticate(ctx, tx, payment, policy)
		if err != nil {
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConnectorError {
				return err
			}
			// Transient: put the payment back and commit so the failed
			// attempt record survives, then surface the error.
			payment.Status = enums.PaymentStatusRequiresConfirmation
			if saveErr := repo.Update(ctx, payment); saveErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, saveErr, "updating payment")
			}
			connectorErr = err
			return nil
		}

		switch authResult.Status {
		case enums.AuthenticationStatusChallengePending:
			payment.Status = enums.PaymentStatusRequiresCustomerAction
			if err := repo.Update(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment")
			}
			s.metrics.IncConfirmation("requires_customer_action")
			result = &ConfirmResult{
				Payment: payment,
				NextAction: &NextAction{
					Type:        "redirect_to_url",
					RedirectURL: authResult.ChallengeURL,
					AttemptID:   authResult.AttemptID,
				},
			}
			return nil
		case enums.AuthenticationStatusFrictionlessPass:
			var err error
			result, err = s.settle(ctx, tx, payment, validated, authResult.Cavv, authResult.ECI)
			return err
		default:
			var err error
			result, err = s.failAuthentication(ctx, tx, payment, authResult.ErrorCode, authResult.ErrorMessage)
			return err
		}
	})
	if txErr != nil {
		return nil, txErr
	}
	if connectorErr != nil {
		return nil, connectorErr
	}
	if lostClaim {
		return s.confirmedElsewhere(ctx, accountID, paymentID)
	}
	return result, nil
}

// confirmedElsewhere handles a confirm that lost the status claim to a
// concurrent request: replay the winner's outcome where one exists.
func (s *Service) confirmedElsewhere(ctx context.Context, accountID, paymentID uuid.UUID) (*ConfirmResult, error) {
	payment, err := s.Get(ctx, accountID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		s.metrics.IncConfirmation("replayed")
		return &ConfirmResult{Payment: payment}, nil
	}
	if payment.Status == enums.PaymentStatusRequiresCustomerAction {
		return s.pendingResult(ctx, payment)
	}
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("payment %s is being confirmed by another request", payment.ID))
}

func (s *Service) mandateGate(payment *models.Payment, req ConfirmRequest) (*mandates.ValidatedMandate, error) {
	needsMandate := payment.SetupFutureUsage == enums.SetupFutureUsageOffSession &&
		payment.PaymentType == enums.PaymentTypeSetupMandate
	if !needsMandate && req.MandateData == nil {
		return nil, nil
	}
	if req.MandateData == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMandate, "mandate data is required for off-session setup")
	}
	return mandates.Validate(*req.MandateData)
}

func (s *Service) pendingResult(ctx context.Context, payment *models.Payment) (*ConfirmResult, error) {
	attempt, err := s.auth.LatestAttempt(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.Status != enums.AuthenticationStatusChallengePending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment %s awaits customer action but has no pending challenge", payment.ID))
	}
	action := &NextAction{Type: "redirect_to_url", AttemptID: attempt.ID}
	if attempt.ChallengeURL != nil {
		action.RedirectURL = *attempt.ChallengeURL
	}
	return &ConfirmResult{Payment: payment, NextAction: action}, nil
}

// settle runs the post-authentication leg: mandate materialization and the
// single processor forward, all inside the caller's transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, payment *models.Payment, validated *mandates.ValidatedMandate, cavv, eci string) (*ConfirmResult, error) {
	repo := s.repo.WithTx(tx)

	now := time.Now().UTC()
	payment.Status = enums.PaymentStatusAuthorized
	payment.AuthorizedAt = &now

	var mandate *models.Mandate
	if validated != nil {
		created, err := s.mandates.Materialize(ctx, tx, validated, payment)
		if err != nil {
			return nil, err
		}
		mandate = created
		payment.MandateID = &created.ID
	}

	connectorCfg, err := s.registry.Resolve(ctx, payment.ProfileID, enums.ConnectorTypePaymentProcessor)
	if err != nil {
		return nil, err
	}
	credential, err := s.secrets.Resolve(ctx, connectorCfg.CredentialRef)
	if err != nil {
		return nil, err
	}
	processor, err := s.factory(connectors.Config{
		Name:       connectorCfg.ConnectorName,
		Credential: credential,
		Metadata:   connectorCfg.Metadata,
		TestMode:   connectorCfg.TestMode,
		Timeout:    s.connCfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.authorize(ctx, connectorCfg.ConnectorName, processor, connectors.AuthorizeRequest{
		PaymentID:         payment.ID,
		AmountCents:       payment.AmountCents,
		Currency:          payment.Currency,
		PaymentMethod:     payment.PaymentMethod,
		PaymentMethodType: payment.PaymentMethodType,
		PaymentMethodData: payment.PaymentMethodData,
		Cavv:              cavv,
		ECI:               eci,
		SetupMandate:      mandate != nil,
	})
	if err != nil {
		return nil, err
	}

	connectorName := connectorCfg.ConnectorName
	payment.ConnectorName = &connectorName

	if !resp.Approved {
		payment.Status = enums.PaymentStatusCaptureFailed
		if resp.DeclineCode != "" {
			code := resp.DeclineCode
			payment.FailureCode = &code
		}
		if resp.DeclineMessage != "" {
			message := resp.DeclineMessage
			payment.FailureMessage = &message
		}
		if err := repo.Update(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptureFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.PaymentCaptureFailedEvent{
				PaymentID:      payment.ID,
				ProfileID:      payment.ProfileID,
				ConnectorName:  connectorName,
				FailureCode:    resp.DeclineCode,
				FailureMessage: resp.DeclineMessage,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting capture failed event")
		}
		s.metrics.IncConfirmation("capture_failed")
		return &ConfirmResult{Payment: payment}, nil
	}

	captured := resp.AmountCapturedCents
	if captured == 0 {
		captured = payment.AmountCents
	}
	payment.Status = enums.PaymentStatusCaptured
	payment.AmountCapturedCents = &captured
	payment.CapturedAt = &now
	if resp.ConnectorPaymentID != "" {
		connectorPaymentID := resp.ConnectorPaymentID
		payment.ConnectorPaymentID = &connectorPaymentID
	}
	if err := repo.Update(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment")
	}

	if mandate != nil && resp.ConnectorMandateID != "" {
		if err := s.mandates.RecordConnectorMandate(ctx, tx, mandate.ID, connectorName, resp.ConnectorMandateID); err != nil {
			return nil, err
		}
	}
	if payment.PaymentType == enums.PaymentTypeRecurring && payment.MandateID != nil {
		if err := s.mandates.ApplyCharge(ctx, tx, *payment.MandateID, captured); err != nil {
			return nil, err
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentCaptured,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentCapturedEvent{
			PaymentID:           payment.ID,
			ProfileID:           payment.ProfileID,
			ConnectorName:       connectorName,
			ConnectorPaymentID:  resp.ConnectorPaymentID,
			AmountCents:         payment.AmountCents,
			AmountCapturedCents: captured,
			Currency:            payment.Currency,
			CapturedAt:          now,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting captured event")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id": payment.ID.String(),
		"connector":  connectorName,
		"amount":     captured,
	})
	s.logg.Info(logCtx, "payment captured")
	s.metrics.IncConfirmation("captured")
	return &ConfirmResult{Payment: payment}, nil
}

func (s *Service) authorize(ctx context.Context, connectorName string, processor connectors.Processor, req connectors.AuthorizeRequest) (*connectors.AuthorizeResponse, error) {
	timeout := s.connCfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := processor.Authorize(callCtx, req)
	s.metrics.ObserveConnectorCall(connectorName, "authorize", time.Since(started))
	if err != nil {
		s.metrics.IncConnectorError(connectorName, "authorize")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "payment connector timed out")
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) failAuthentication(ctx context.Context, tx *gorm.DB, payment *models.Payment, failureCode, failureMessage string) (*ConfirmResult, error) {
	repo := s.repo.WithTx(tx)
	payment.Status = enums.PaymentStatusAuthenticationFailed
	if failureCode != "" {
		code := failureCode
		payment.FailureCode = &code
	}
	if failureMessage != "" {
		message := failureMessage
		payment.FailureMessage = &message
	}
	if err := repo.Update(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment")
	}

	connectorName := ""
	if payment.ConnectorName != nil {
		connectorName = *payment.ConnectorName
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventPaymentAuthenticationFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentAuthenticationFailedEvent{
			PaymentID:      payment.ID,
			ProfileID:      payment.ProfileID,
			ConnectorName:  connectorName,
			FailureCode:    failureCode,
			FailureMessage: failureMessage,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting authentication failed event")
	}
	s.metrics.IncConfirmation("authentication_failed")
	return &ConfirmResult{Payment: payment}, nil
}

// Resume settles the payment after its challenge came back. The attempt is
// located by id; a passing challenge continues into the single processor
// forward, a failing one ends the payment.
func (s *Service) Resume(ctx context.Context, attemptID uuid.UUID, outcome authentication.ChallengeOutcome) (*ConfirmResult, error) {
	pending, err := s.auth.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	var result *ConfirmResult
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Claim before touching the attempt so a double-delivered challenge
		// callback settles the payment exactly once.
		claimed, err := repo.Transition(ctx, pending.PaymentID, enums.PaymentStatusAuthenticating,
			enums.PaymentStatusRequiresCustomerAction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming payment")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment %s has no customer action to resume", pending.PaymentID))
		}

		attempt, err := s.auth.ResumeAfterChallenge(ctx, tx, attemptID, outcome)
		if err != nil {
			return err
		}

		payment, err := repo.FindByID(ctx, attempt.PaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment %s not found", attempt.PaymentID))
		}

		if attempt.Status != enums.AuthenticationStatusFrictionlessPass {
			result, err = s.failAuthentication(ctx, tx, payment, outcome.ErrorCode, outcome.ErrorMessage)
			return err
		}

		cavv := ""
		if attempt.Cavv != nil {
			cavv = *attempt.Cavv
		}
		eci := ""
		if attempt.ECI != nil {
			eci = *attempt.ECI
		}
		result, err = s.settle(ctx, tx, payment, nil, cavv, eci)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// Cancel abandons a payment that has not reached a terminal status. A pending
// challenge attempt is failed alongside it.
func (s *Service) Cancel(ctx context.Context, accountID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.Get(ctx, accountID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment %s is already %s", payment.ID, payment.Status))
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.repo.WithTx(tx).Transition(ctx, payment.ID, enums.PaymentStatusCancelled,
			enums.PaymentStatusCreated, enums.PaymentStatusRequiresConfirmation,
			enums.PaymentStatusAuthenticating, enums.PaymentStatusRequiresCustomerAction,
			enums.PaymentStatusAuthorized)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling payment")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment %s is already settled", payment.ID))
		}
		payment.Status = enums.PaymentStatusCancelled

		if _, err := s.auth.CancelPending(ctx, tx, payment.ID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCancelled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.PaymentCancelledEvent{
				PaymentID:   payment.ID,
				ProfileID:   payment.ProfileID,
				CancelledAt: time.Now().UTC(),
				Reason:      "cancelled by merchant",
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting cancelled event")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	s.metrics.IncConfirmation("cancelled")
	return payment, nil
}
