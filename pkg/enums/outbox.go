package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePayment OutboxAggregateType = "payment"
	AggregateMandate OutboxAggregateType = "mandate"
	AggregateRefund  OutboxAggregateType = "refund"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregateMandate,
	AggregateRefund,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentCaptured             OutboxEventType = "payment_captured"
	EventPaymentCaptureFailed        OutboxEventType = "payment_capture_failed"
	EventPaymentAuthenticationFailed OutboxEventType = "payment_authentication_failed"
	EventPaymentCancelled            OutboxEventType = "payment_cancelled"
	EventMandateCreated              OutboxEventType = "mandate_created"
	EventMandateRevoked              OutboxEventType = "mandate_revoked"
	EventRefundCreated               OutboxEventType = "refund_created"
)

var validEventTypes = []OutboxEventType{
	EventPaymentCaptured,
	EventPaymentCaptureFailed,
	EventPaymentAuthenticationFailed,
	EventPaymentCancelled,
	EventMandateCreated,
	EventMandateRevoked,
	EventRefundCreated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason classifies why an outbox event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// IsValid reports whether the value matches the canonical DLQ reason enum.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
