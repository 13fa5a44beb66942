package connectors

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// AuthOutcome is the connector's verdict on a 3DS request.
type AuthOutcome string

const (
	AuthOutcomeFrictionlessPass AuthOutcome = "frictionless_pass"
	AuthOutcomeChallenge        AuthOutcome = "challenge"
	AuthOutcomeFailed           AuthOutcome = "failed"
)

// AuthRequest carries everything an authentication connector needs for one
// 3DS call.
type AuthRequest struct {
	PaymentID         uuid.UUID
	AmountCents       int64
	Currency          enums.Currency
	PaymentMethod     enums.PaymentMethod
	PaymentMethodType enums.PaymentMethodType
	PaymentMethodData json.RawMessage
	RequestorURL      string
	RequestorAppURL   string
	ForceChallenge    bool
	ReturnURL         string
}

// AuthResponse is the normalized 3DS result.
type AuthResponse struct {
	Outcome           AuthOutcome
	ConnectorAuthID   string
	Cavv              string
	ECI               string
	ThreeDSVersion    string
	ChallengeURL      string
	ContinuationToken string
	ErrorCode         string
	ErrorMessage      string
}

// Authenticator performs 3DS authentication.
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error)
}

// AuthorizeRequest asks a payment processor to authorize and capture.
type AuthorizeRequest struct {
	PaymentID          uuid.UUID
	AmountCents        int64
	Currency           enums.Currency
	PaymentMethod      enums.PaymentMethod
	PaymentMethodType  enums.PaymentMethodType
	PaymentMethodData  json.RawMessage
	Cavv               string
	ECI                string
	SetupMandate       bool
	ConnectorMandateID string
}

// AuthorizeResponse is the normalized processor result.
type AuthorizeResponse struct {
	Approved            bool
	ConnectorPaymentID  string
	ConnectorMandateID  string
	AmountCapturedCents int64
	DeclineCode         string
	DeclineMessage      string
}

// RefundRequest forwards a refund through the processor.
type RefundRequest struct {
	RefundID           uuid.UUID
	ConnectorPaymentID string
	AmountCents        int64
	Currency           enums.Currency
	Reason             string
}

// RefundResponse is the normalized refund result.
type RefundResponse struct {
	Approved          bool
	ConnectorRefundID string
	ErrorCode         string
	ErrorMessage      string
}

// Processor authorizes, captures and refunds payments.
type Processor interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
}
