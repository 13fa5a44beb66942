package mandates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/outbox"
	"github.com/velopay/payswitch-backend/pkg/outbox/payloads"
)

// ServiceParams groups dependencies for the mandate engine.
type ServiceParams struct {
	Repo   Repository
	Outbox *outbox.Service
	Logger *logger.Logger
}

// Service materializes, charges against and revokes mandates.
type Service struct {
	repo   Repository
	outbox *outbox.Service
	logg   *logger.Logger
}

// NewService builds a mandate service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, outbox: params.Outbox, logg: params.Logger}, nil
}

// Materialize persists a validated mandate inside the caller's transaction
// and emits the created event atomically with it.
func (s *Service) Materialize(ctx context.Context, tx *gorm.DB, validated *ValidatedMandate, payment *models.Payment) (*models.Mandate, error) {
	if validated == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "validated mandate is nil")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment is nil")
	}

	var metadata json.RawMessage
	if validated.Metadata != nil {
		buf, err := json.Marshal(validated.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding mandate metadata")
		}
		metadata = buf
	}

	mandate := &models.Mandate{
		ID:                uuid.New(),
		MerchantAccountID: payment.MerchantAccountID,
		CustomerID:        payment.CustomerID,
		OriginalPaymentID: payment.ID,
		AcceptanceType:    validated.Acceptance.AcceptanceType,
		AcceptedAt:        validated.Acceptance.AcceptedAt,
		MandateType:       validated.MandateType,
		AmountCents:       validated.AmountCents,
		Currency:          validated.Currency,
		StartDate:         validated.StartDate,
		EndDate:           validated.EndDate,
		Metadata:          metadata,
		Status:            enums.MandateStatusActive,
	}
	if validated.Acceptance.IPAddress != "" {
		ip := validated.Acceptance.IPAddress
		mandate.AcceptanceIP = &ip
	}
	if validated.Acceptance.UserAgent != "" {
		ua := validated.Acceptance.UserAgent
		mandate.AcceptanceUserAgent = &ua
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, mandate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating mandate")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventMandateCreated,
		AggregateType: enums.AggregateMandate,
		AggregateID:   mandate.ID,
		Version:       1,
		Data: payloads.MandateCreatedEvent{
			MandateID:         mandate.ID,
			OriginalPaymentID: payment.ID,
			MandateType:       mandate.MandateType,
			AmountCents:       mandate.AmountCents,
			Currency:          mandate.Currency,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting mandate created event")
	}
	return mandate, nil
}

// RecordConnectorMandate stores the connector-side reference once the
// processor reports it.
func (s *Service) RecordConnectorMandate(ctx context.Context, tx *gorm.DB, mandateID uuid.UUID, connectorName, connectorMandateID string) error {
	repo := s.repo.WithTx(tx)
	mandate, err := repo.FindByID(ctx, mandateID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mandate")
	}
	if mandate == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("mandate %s not found", mandateID))
	}
	mandate.ConnectorName = &connectorName
	mandate.ConnectorMandateID = &connectorMandateID
	if err := repo.Update(ctx, mandate); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating mandate")
	}
	return nil
}

// EnsureChargeable verifies the mandate can absorb the charge without
// mutating it. The confirmation path checks this before any connector call;
// ApplyCharge records the charge once the processor approved.
func (s *Service) EnsureChargeable(ctx context.Context, tx *gorm.DB, mandateID uuid.UUID, amountCents int64) error {
	repo := s.repo.WithTx(tx)
	mandate, err := repo.FindByID(ctx, mandateID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mandate")
	}
	if mandate == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("mandate %s not found", mandateID))
	}
	if mandate.Status != enums.MandateStatusActive {
		return pkgerrors.New(pkgerrors.CodeInvalidMandate, fmt.Sprintf("mandate %s is %s", mandateID, mandate.Status))
	}
	if mandate.MandateType == enums.MandateTypeMultiUse && mandate.AmountCapturedCents+amountCents > mandate.AmountCents {
		return pkgerrors.New(pkgerrors.CodeInvalidMandate, "charge exceeds mandate amount")
	}
	return nil
}

// ApplyCharge records a recurring charge against the mandate. Multi-use
// mandates accumulate the captured amount; single-use mandates are revoked
// after their first use.
func (s *Service) ApplyCharge(ctx context.Context, tx *gorm.DB, mandateID uuid.UUID, amountCents int64) error {
	repo := s.repo.WithTx(tx)
	mandate, err := repo.FindByID(ctx, mandateID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mandate")
	}
	if mandate == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("mandate %s not found", mandateID))
	}
	if mandate.Status != enums.MandateStatusActive {
		return pkgerrors.New(pkgerrors.CodeInvalidMandate, fmt.Sprintf("mandate %s is %s", mandateID, mandate.Status))
	}

	switch mandate.MandateType {
	case enums.MandateTypeSingleUse:
		mandate.AmountCapturedCents = amountCents
		mandate.Status = enums.MandateStatusRevoked
	case enums.MandateTypeMultiUse:
		if mandate.AmountCapturedCents+amountCents > mandate.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInvalidMandate, "charge exceeds mandate amount")
		}
		mandate.AmountCapturedCents += amountCents
	}

	if err := repo.Update(ctx, mandate); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating mandate")
	}

	if mandate.Status == enums.MandateStatusRevoked {
		event := outbox.DomainEvent{
			EventType:     enums.EventMandateRevoked,
			AggregateType: enums.AggregateMandate,
			AggregateID:   mandate.ID,
			Version:       1,
			Data: payloads.MandateRevokedEvent{
				MandateID: mandate.ID,
				RevokedAt: time.Now().UTC(),
				Reason:    "single_use mandate consumed",
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting mandate revoked event")
		}
	}
	return nil
}

// Revoke transitions an active or pending mandate to revoked. Revoking an
// already revoked mandate is rejected rather than treated as a no-op.
func (s *Service) Revoke(ctx context.Context, tx *gorm.DB, accountID, mandateID uuid.UUID) (*models.Mandate, error) {
	repo := s.repo.WithTx(tx)
	mandate, err := repo.FindByID(ctx, mandateID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mandate")
	}
	if mandate == nil || mandate.MerchantAccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("mandate %s not found", mandateID))
	}

	switch mandate.Status {
	case enums.MandateStatusActive, enums.MandateStatusPending:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMandate, fmt.Sprintf("cannot revoke mandate in status %s", mandate.Status))
	}

	mandate.Status = enums.MandateStatusRevoked
	if err := repo.Update(ctx, mandate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoking mandate")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventMandateRevoked,
		AggregateType: enums.AggregateMandate,
		AggregateID:   mandate.ID,
		Version:       1,
		Data: payloads.MandateRevokedEvent{
			MandateID: mandate.ID,
			RevokedAt: time.Now().UTC(),
			Reason:    "merchant revocation",
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting mandate revoked event")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"mandate_id": mandate.ID.String()})
	s.logg.Info(logCtx, "mandate revoked")
	return mandate, nil
}

// Get returns a mandate scoped to the account.
func (s *Service) Get(ctx context.Context, accountID, mandateID uuid.UUID) (*models.Mandate, error) {
	mandate, err := s.repo.FindByID(ctx, mandateID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mandate")
	}
	if mandate == nil || mandate.MerchantAccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("mandate %s not found", mandateID))
	}
	return mandate, nil
}

// ListByMerchant returns mandates under the account with optional filters.
func (s *Service) ListByMerchant(ctx context.Context, accountID uuid.UUID, params ListQuery) ([]models.Mandate, error) {
	rows, err := s.repo.ListByMerchant(ctx, accountID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing mandates")
	}
	return rows, nil
}

// ListByCustomer returns the customer's mandates under the account.
func (s *Service) ListByCustomer(ctx context.Context, accountID uuid.UUID, customerID string) ([]models.Mandate, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	rows, err := s.repo.ListByCustomer(ctx, accountID, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing customer mandates")
	}
	return rows, nil
}
