package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// Payment is the confirmation state machine's aggregate root. Terminal rows
// are never mutated again; a repeated confirm replays the stored outcome.
type Payment struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantAccountID   uuid.UUID               `gorm:"column:merchant_account_id;type:uuid;not null;index"`
	ProfileID           uuid.UUID               `gorm:"column:profile_id;type:uuid;not null;index"`
	CustomerID          *string                 `gorm:"column:customer_id;index"`
	AmountCents         int64                   `gorm:"column:amount_cents;not null"`
	Currency            enums.Currency          `gorm:"column:currency;not null"`
	PaymentMethod       enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentMethodType   enums.PaymentMethodType `gorm:"column:payment_method_type;type:payment_method_type;not null"`
	PaymentMethodData   json.RawMessage         `gorm:"column:payment_method_data;type:jsonb"`
	SetupFutureUsage    enums.SetupFutureUsage  `gorm:"column:setup_future_usage;type:setup_future_usage;not null;default:'none'"`
	PaymentType         enums.PaymentType       `gorm:"column:payment_type;type:payment_type;not null;default:'normal'"`
	Status              enums.PaymentStatus     `gorm:"column:status;type:payment_status;not null;default:'created'"`
	MandateID           *uuid.UUID              `gorm:"column:mandate_id;type:uuid"`
	ConnectorName       *string                 `gorm:"column:connector_name"`
	ConnectorPaymentID  *string                 `gorm:"column:connector_payment_id"`
	AmountCapturedCents *int64                  `gorm:"column:amount_captured_cents"`
	AuthorizedAt        *time.Time              `gorm:"column:authorized_at"`
	CapturedAt          *time.Time              `gorm:"column:captured_at"`
	FailureCode         *string                 `gorm:"column:failure_code"`
	FailureMessage      *string                 `gorm:"column:failure_message"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
