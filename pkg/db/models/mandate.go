package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// Mandate records a customer's authorization for future charges. Single-use
// mandates are revoked automatically after their first recurring charge;
// multi-use mandates accumulate AmountCapturedCents across charges.
type Mandate struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantAccountID   uuid.UUID            `gorm:"column:merchant_account_id;type:uuid;not null;index"`
	CustomerID          *string              `gorm:"column:customer_id;index"`
	OriginalPaymentID   uuid.UUID            `gorm:"column:original_payment_id;type:uuid;not null"`
	AcceptanceType      enums.AcceptanceType `gorm:"column:acceptance_type;type:acceptance_type;not null"`
	AcceptedAt          time.Time            `gorm:"column:accepted_at;not null"`
	AcceptanceIP        *string              `gorm:"column:acceptance_ip"`
	AcceptanceUserAgent *string              `gorm:"column:acceptance_user_agent"`
	MandateType         enums.MandateType    `gorm:"column:mandate_type;type:mandate_type;not null"`
	AmountCents         int64                `gorm:"column:amount_cents;not null"`
	Currency            enums.Currency       `gorm:"column:currency;not null"`
	StartDate           *time.Time           `gorm:"column:start_date"`
	EndDate             *time.Time           `gorm:"column:end_date"`
	Metadata            json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	Status              enums.MandateStatus  `gorm:"column:status;type:mandate_status;not null;default:'active'"`
	AmountCapturedCents int64                `gorm:"column:amount_captured_cents;not null;default:0"`
	ConnectorName       *string              `gorm:"column:connector_name"`
	ConnectorMandateID  *string              `gorm:"column:connector_mandate_id"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
