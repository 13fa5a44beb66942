package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// PaymentCapturedEvent is emitted when a confirmation reaches captured.
type PaymentCapturedEvent struct {
	PaymentID           uuid.UUID      `json:"payment_id"`
	ProfileID           uuid.UUID      `json:"profile_id"`
	ConnectorName       string         `json:"connector_name"`
	ConnectorPaymentID  string         `json:"connector_payment_id,omitempty"`
	AmountCents         int64          `json:"amount_cents"`
	AmountCapturedCents int64          `json:"amount_captured_cents"`
	Currency            enums.Currency `json:"currency"`
	CapturedAt          time.Time      `json:"captured_at"`
}

// PaymentCaptureFailedEvent reports a processor decline after authentication.
type PaymentCaptureFailedEvent struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	ProfileID      uuid.UUID `json:"profile_id"`
	ConnectorName  string    `json:"connector_name"`
	FailureCode    string    `json:"failure_code,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
}

// PaymentAuthenticationFailedEvent reports a terminal 3DS failure.
type PaymentAuthenticationFailedEvent struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	ProfileID      uuid.UUID `json:"profile_id"`
	ConnectorName  string    `json:"connector_name,omitempty"`
	FailureCode    string    `json:"failure_code,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
}

// PaymentCancelledEvent is emitted when a pending challenge is abandoned.
type PaymentCancelledEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	ProfileID   uuid.UUID `json:"profile_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// MandateCreatedEvent is emitted when a mandate is materialized.
type MandateCreatedEvent struct {
	MandateID         uuid.UUID         `json:"mandate_id"`
	OriginalPaymentID uuid.UUID         `json:"original_payment_id"`
	MandateType       enums.MandateType `json:"mandate_type"`
	AmountCents       int64             `json:"amount_cents"`
	Currency          enums.Currency    `json:"currency"`
}

// MandateRevokedEvent is emitted on explicit or automatic revocation.
type MandateRevokedEvent struct {
	MandateID uuid.UUID `json:"mandate_id"`
	RevokedAt time.Time `json:"revoked_at"`
	Reason    string    `json:"reason,omitempty"`
}

// RefundCreatedEvent is emitted when a refund row is recorded.
type RefundCreatedEvent struct {
	RefundID          uuid.UUID          `json:"refund_id"`
	PaymentID         uuid.UUID          `json:"payment_id"`
	ConnectorName     string             `json:"connector_name"`
	RefundAmountCents int64              `json:"refund_amount_cents"`
	Currency          enums.Currency     `json:"currency"`
	Status            enums.RefundStatus `json:"status"`
}
