package mandates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/outbox"
)

func setupMandatesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	mandatesTable := `
CREATE TABLE IF NOT EXISTS mandates (
  id TEXT PRIMARY KEY,
  merchant_account_id TEXT NOT NULL,
  customer_id TEXT,
  original_payment_id TEXT NOT NULL,
  acceptance_type TEXT NOT NULL,
  accepted_at DATETIME NOT NULL,
  acceptance_ip TEXT,
  acceptance_user_agent TEXT,
  mandate_type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  start_date DATETIME,
  end_date DATETIME,
  metadata TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  amount_captured_cents INTEGER NOT NULL DEFAULT 0,
  connector_name TEXT,
  connector_mandate_id TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	require.NoError(t, db.Exec(mandatesTable).Error)

	outboxTable := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(outboxTable).Error)

	return db
}

func newMandateService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "mandates-test"})
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
		Logger: logg,
	})
	require.NoError(t, err)
	return svc
}

func testPayment() *models.Payment {
	customer := "cust_1"
	return &models.Payment{
		ID:                uuid.New(),
		MerchantAccountID: uuid.New(),
		ProfileID:         uuid.New(),
		CustomerID:        &customer,
		AmountCents:       4999,
		Currency:          enums.CurrencyUSD,
	}
}

func materialize(t *testing.T, db *gorm.DB, svc *Service, payment *models.Payment, mandateType enums.MandateType) *models.Mandate {
	t.Helper()
	validated := &ValidatedMandate{
		Acceptance: CustomerAcceptance{
			AcceptanceType: enums.AcceptanceTypeOnline,
			AcceptedAt:     time.Now().UTC(),
			IPAddress:      "203.0.113.7",
			UserAgent:      "Mozilla/5.0",
		},
		MandateType: mandateType,
		AmountCents: 10000,
		Currency:    enums.CurrencyUSD,
	}
	var mandate *models.Mandate
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		mandate, err = svc.Materialize(context.Background(), tx, validated, payment)
		return err
	})
	require.NoError(t, err)
	return mandate
}

func TestMaterializePersistsMandateAndEvent(t *testing.T) {
	db := setupMandatesTestDB(t)
	svc := newMandateService(t, db)
	payment := testPayment()

	mandate := materialize(t, db, svc, payment, enums.MandateTypeSingleUse)
	assert.Equal(t, enums.MandateStatusActive, mandate.Status)
	assert.Equal(t, payment.ID, mandate.OriginalPaymentID)
	require.NotNil(t, mandate.AcceptanceIP)
	assert.Equal(t, "203.0.113.7", *mandate.AcceptanceIP)

	var eventCount int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventMandateCreated).
		Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestApplyChargeSingleUseAutoRevokes(t *testing.T) {
	db := setupMandatesTestDB(t)
	svc := newMandateService(t, db)
	mandate := materialize(t, db, svc, testPayment(), enums.MandateTypeSingleUse)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.ApplyCharge(context.Background(), tx, mandate.ID, 10000)
	}))

	var stored models.Mandate
	require.NoError(t, db.Where("id = ?", mandate.ID).First(&stored).Error)
	assert.Equal(t, enums.MandateStatusRevoked, stored.Status)
	assert.Equal(t, int64(10000), stored.AmountCapturedCents)

	// a second charge against the consumed mandate must fail
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ApplyCharge(context.Background(), tx, mandate.ID, 100)
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidMandate, pkgerrors.As(err).Code())
}

func TestApplyChargeMultiUseAccumulates(t *testing.T) {
	db := setupMandatesTestDB(t)
	svc := newMandateService(t, db)
	mandate := materialize(t, db, svc, testPayment(), enums.MandateTypeMultiUse)

	for _, amount := range []int64{3000, 4000} {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.ApplyCharge(context.Background(), tx, mandate.ID, amount)
		}))
	}

	var stored models.Mandate
	require.NoError(t, db.Where("id = ?", mandate.ID).First(&stored).Error)
	assert.Equal(t, enums.MandateStatusActive, stored.Status)
	assert.Equal(t, int64(7000), stored.AmountCapturedCents)

	// exceeding the mandate amount is rejected
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ApplyCharge(context.Background(), tx, mandate.ID, 4000)
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidMandate, pkgerrors.As(err).Code())
}

func TestRevokeTwiceRejected(t *testing.T) {
	db := setupMandatesTestDB(t)
	svc := newMandateService(t, db)
	payment := testPayment()
	mandate := materialize(t, db, svc, payment, enums.MandateTypeMultiUse)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Revoke(context.Background(), tx, payment.MerchantAccountID, mandate.ID)
		return err
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Revoke(context.Background(), tx, payment.MerchantAccountID, mandate.ID)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidMandate, pkgerrors.As(err).Code())
}

func TestGetScopedToAccount(t *testing.T) {
	db := setupMandatesTestDB(t)
	svc := newMandateService(t, db)
	payment := testPayment()
	mandate := materialize(t, db, svc, payment, enums.MandateTypeSingleUse)

	found, err := svc.Get(context.Background(), payment.MerchantAccountID, mandate.ID)
	require.NoError(t, err)
	assert.Equal(t, mandate.ID, found.ID)

	_, err = svc.Get(context.Background(), uuid.New(), mandate.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
