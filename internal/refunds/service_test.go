package refunds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/internal/connectors"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/outbox"
	"github.com/velopay/payswitch-backend/pkg/secrets"
)

func setupRefundsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  merchant_account_id TEXT NOT NULL,
  connector_name TEXT NOT NULL,
  connector_refund_id TEXT,
  total_amount_cents INTEGER NOT NULL,
  refund_amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  reason TEXT,
  error_code TEXT,
  error_message TEXT,
  sent_to_gateway INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

type testTx struct {
	db *gorm.DB
}

func (t testTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.Transaction(fn)
}

type stubPayments struct {
	payment *models.Payment
}

func (s *stubPayments) Get(_ context.Context, accountID, paymentID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.ID != paymentID || s.payment.MerchantAccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return s.payment, nil
}

type stubRegistry struct {
	cfg *models.ConnectorConfig
}

func (s *stubRegistry) Resolve(_ context.Context, _ uuid.UUID, _ enums.ConnectorType) (*models.ConnectorConfig, error) {
	return s.cfg, nil
}

type stubProcessor struct {
	calls   int
	approve bool
}

func (p *stubProcessor) Authorize(_ context.Context, _ connectors.AuthorizeRequest) (*connectors.AuthorizeResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not used")
}

func (p *stubProcessor) Refund(_ context.Context, req connectors.RefundRequest) (*connectors.RefundResponse, error) {
	p.calls++
	if !p.approve {
		return &connectors.RefundResponse{
			Approved:     false,
			ErrorCode:    "refund_rejected",
			ErrorMessage: "charge already disputed",
		}, nil
	}
	return &connectors.RefundResponse{Approved: true, ConnectorRefundID: "re_42"}, nil
}

type refundsFixture struct {
	db        *gorm.DB
	svc       *Service
	processor *stubProcessor
	payment   *models.Payment
	accountID uuid.UUID
}

func newRefundsFixture(t *testing.T) *refundsFixture {
	t.Helper()
	db := setupRefundsTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "refunds-test"})

	accountID := uuid.New()
	captured := int64(10000)
	connectorName := "amazonpay"
	connectorPaymentID := "ch_1"
	payment := &models.Payment{
		ID:                  uuid.New(),
		MerchantAccountID:   accountID,
		ProfileID:           uuid.New(),
		AmountCents:         10000,
		AmountCapturedCents: &captured,
		Currency:            enums.CurrencyUSD,
		Status:              enums.PaymentStatusCaptured,
		ConnectorName:       &connectorName,
		ConnectorPaymentID:  &connectorPaymentID,
	}

	fixture := &refundsFixture{
		db:        db,
		processor: &stubProcessor{approve: true},
		payment:   payment,
		accountID: accountID,
	}

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Payments: &stubPayments{payment: payment},
		Registry: &stubRegistry{cfg: &models.ConnectorConfig{
			ID:            uuid.New(),
			ConnectorName: connectorName,
			ConnectorType: enums.ConnectorTypePaymentProcessor,
			CredentialRef: "amazon_key",
		}},
		Secrets: secrets.Static{"amazon_key": "sk_live"},
		Outbox:  outbox.NewService(outbox.NewRepository(db), logg),
		Tx:      testTx{db: db},
		Logger:  logg,
		Factory: func(cfg connectors.Config) (connectors.Processor, error) {
			return fixture.processor, nil
		},
	})
	require.NoError(t, err)
	fixture.svc = svc
	return fixture
}

func TestCreateRefundSucceeds(t *testing.T) {
	f := newRefundsFixture(t)

	refund, err := f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{
		AmountCents: 4000,
		Reason:      "customer request",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusSucceeded, refund.Status)
	assert.True(t, refund.SentToGateway)
	require.NotNil(t, refund.ConnectorRefundID)
	assert.Equal(t, "re_42", *refund.ConnectorRefundID)
	assert.Equal(t, 1, f.processor.calls)

	var eventCount int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventRefundCreated).
		Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestCreateRefundBoundedByCapturedAmount(t *testing.T) {
	f := newRefundsFixture(t)

	_, err := f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 6000})
	require.NoError(t, err)

	// 6000 already refunded, only 4000 left
	_, err = f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 5000})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, 1, f.processor.calls)

	_, err = f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 4000})
	require.NoError(t, err)
	assert.Equal(t, 2, f.processor.calls)
}

func TestCreateRefundOnlyForCaptured(t *testing.T) {
	f := newRefundsFixture(t)
	f.payment.Status = enums.PaymentStatusRequiresConfirmation

	_, err := f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 1000})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Equal(t, 0, f.processor.calls)
}

func TestFailedRefundReleasesReservation(t *testing.T) {
	f := newRefundsFixture(t)
	f.processor.approve = false

	refund, err := f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 10000})
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusFailed, refund.Status)
	require.NotNil(t, refund.ErrorCode)
	assert.Equal(t, "refund_rejected", *refund.ErrorCode)

	// the failed refund does not consume refundable amount
	f.processor.approve = true
	retried, err := f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 10000})
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusSucceeded, retried.Status)
}

func TestGetAndListScopedToAccount(t *testing.T) {
	f := newRefundsFixture(t)

	refund, err := f.svc.Create(context.Background(), f.accountID, f.payment.ID, CreateInput{AmountCents: 2500})
	require.NoError(t, err)

	found, err := f.svc.Get(context.Background(), f.accountID, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.ID, found.ID)

	_, err = f.svc.Get(context.Background(), uuid.New(), refund.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	rows, err := f.svc.ListByPayment(context.Background(), f.accountID, f.payment.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
