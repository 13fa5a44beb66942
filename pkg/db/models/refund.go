package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// Refund records a single refund against a captured payment.
type Refund struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID         uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	MerchantAccountID uuid.UUID          `gorm:"column:merchant_account_id;type:uuid;not null;index"`
	ConnectorName     string             `gorm:"column:connector_name;not null"`
	ConnectorRefundID *string            `gorm:"column:connector_refund_id"`
	TotalAmountCents  int64              `gorm:"column:total_amount_cents;not null"`
	RefundAmountCents int64              `gorm:"column:refund_amount_cents;not null"`
	Currency          enums.Currency     `gorm:"column:currency;not null"`
	Status            enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	Reason            *string            `gorm:"column:reason"`
	ErrorCode         *string            `gorm:"column:error_code"`
	ErrorMessage      *string            `gorm:"column:error_message"`
	SentToGateway     bool               `gorm:"column:sent_to_gateway;not null;default:false"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
