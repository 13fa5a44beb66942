package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/internal/connectors"
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

type paymentLoader interface {
	Get(ctx context.Context, accountID, paymentID uuid.UUID) (*models.Payment, error)
}

type connectorResolver interface {
	Resolve(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) (*models.ConnectorConfig, error)
}

// ProcessorFactory builds a payment processor from a runtime config.
type ProcessorFactory func(cfg connectors.Config) (connectors.Processor, error)

// ServiceParams groups dependencies for the refund service.
type ServiceParams struct {
	Repo      Repository
	Payments  paymentLoader
	Registry  connectorResolver
	Secrets   secrets.Resolver
	Outbox    *outbox.Service
	Tx        txRunner
	Logger    *logger.Logger
	Metrics   *metrics.SwitchMetrics
	Connector config.ConnectorConfig
	Factory   ProcessorFactory
}

// Service creates refunds against captured payments and forwards them through
// the payment connector.
type Service struct {
	repo     Repository
	payments paymentLoader
	registry connectorResolver
	secrets  secrets.Resolver
	outbox   *outbox.Service
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.SwitchMetrics
	connCfg  config.ConnectorConfig
	factory  ProcessorFactory
}

// NewService builds a refund service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payment loader is required")
	}
	if params.Registry == nil {
		return nil, errors.New("connector resolver is required")
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
		payments: params.Payments,
		registry: params.Registry,
		secrets:  params.Secrets,
		outbox:   params.Outbox,
		tx:       params.Tx,
		logg:     params.Logger,
		metrics:  params.Metrics,
		connCfg:  params.Connector,
		factory:  factory,
	}, nil
}

// CreateInput describes a requested refund.
type CreateInput struct {
	AmountCents int64
	Reason      string
}

// Create refunds part or all of a captured payment. The refundable amount is
// the captured amount minus refunds already pending or succeeded.
func (s *Service) Create(ctx context.Context, accountID, paymentID uuid.UUID, input CreateInput) (*models.Refund, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	payment, err := s.payments.Get(ctx, accountID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusCaptured {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment %s is %s, only captured payments can be refunded", payment.ID, payment.Status))
	}
	captured := payment.AmountCents
	if payment.AmountCapturedCents != nil {
		captured = *payment.AmountCapturedCents
	}

	var refund *models.Refund
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refunded, err := repo.SumRefundedByPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing refunds")
		}
		if input.AmountCents > captured-refunded {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("refund of %d exceeds refundable amount %d", input.AmountCents, captured-refunded))
		}

		connectorName := ""
		if payment.ConnectorName != nil {
			connectorName = *payment.ConnectorName
		}
		refund = &models.Refund{
			ID:                uuid.New(),
			PaymentID:         payment.ID,
			MerchantAccountID: accountID,
			ConnectorName:     connectorName,
			TotalAmountCents:  captured,
			RefundAmountCents: input.AmountCents,
			Currency:          payment.Currency,
			Status:            enums.RefundStatusPending,
		}
		if input.Reason != "" {
			reason := input.Reason
			refund.Reason = &reason
		}
		if err := repo.Create(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating refund")
		}

		resp, err := s.forward(ctx, payment, refund)
		if err != nil {
			return err
		}
		refund.SentToGateway = true
		if resp.Approved {
			refund.Status = enums.RefundStatusSucceeded
			if resp.ConnectorRefundID != "" {
				connectorRefundID := resp.ConnectorRefundID
				refund.ConnectorRefundID = &connectorRefundID
			}
		} else {
			refund.Status = enums.RefundStatusFailed
			if resp.ErrorCode != "" {
				code := resp.ErrorCode
				refund.ErrorCode = &code
			}
			if resp.ErrorMessage != "" {
				message := resp.ErrorMessage
				refund.ErrorMessage = &message
			}
		}
		if err := repo.Update(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating refund")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventRefundCreated,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Version:       1,
			Data: payloads.RefundCreatedEvent{
				RefundID:          refund.ID,
				PaymentID:         payment.ID,
				ConnectorName:     refund.ConnectorName,
				RefundAmountCents: refund.RefundAmountCents,
				Currency:          refund.Currency,
				Status:            refund.Status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting refund created event")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"refund_id":  refund.ID.String(),
		"payment_id": payment.ID.String(),
		"amount":     refund.RefundAmountCents,
		"status":     refund.Status,
	})
	s.logg.Info(logCtx, "refund processed")
	return refund, nil
}

func (s *Service) forward(ctx context.Context, payment *models.Payment, refund *models.Refund) (*connectors.RefundResponse, error) {
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

	connectorPaymentID := ""
	if payment.ConnectorPaymentID != nil {
		connectorPaymentID = *payment.ConnectorPaymentID
	}
	reason := ""
	if refund.Reason != nil {
		reason = *refund.Reason
	}

	timeout := s.connCfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := processor.Refund(callCtx, connectors.RefundRequest{
		RefundID:           refund.ID,
		ConnectorPaymentID: connectorPaymentID,
		AmountCents:        refund.RefundAmountCents,
		Currency:           refund.Currency,
		Reason:             reason,
	})
	s.metrics.ObserveConnectorCall(connectorCfg.ConnectorName, "refund", time.Since(started))
	if err != nil {
		s.metrics.IncConnectorError(connectorCfg.ConnectorName, "refund")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "payment connector timed out")
		}
		return nil, err
	}
	return resp, nil
}

// Get returns a refund scoped to the account.
func (s *Service) Get(ctx context.Context, accountID, refundID uuid.UUID) (*models.Refund, error) {
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading refund")
	}
	if refund == nil || refund.MerchantAccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("refund %s not found", refundID))
	}
	return refund, nil
}

// ListByPayment returns the refund history of a payment.
func (s *Service) ListByPayment(ctx context.Context, accountID, paymentID uuid.UUID) ([]models.Refund, error) {
	if _, err := s.payments.Get(ctx, accountID, paymentID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing refunds")
	}
	return rows, nil
}
