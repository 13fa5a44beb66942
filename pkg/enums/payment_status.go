package enums

import "fmt"

// PaymentStatus tracks the confirmation lifecycle of a payment.
type PaymentStatus string

const (
	PaymentStatusCreated                PaymentStatus = "created"
	PaymentStatusRequiresConfirmation   PaymentStatus = "requires_confirmation"
	PaymentStatusAuthenticating         PaymentStatus = "authenticating"
	PaymentStatusRequiresCustomerAction PaymentStatus = "requires_customer_action"
	PaymentStatusAuthorized             PaymentStatus = "authorized"
	PaymentStatusAuthenticationFailed   PaymentStatus = "authentication_failed"
	PaymentStatusCaptured               PaymentStatus = "captured"
	PaymentStatusCaptureFailed          PaymentStatus = "capture_failed"
	PaymentStatusCancelled              PaymentStatus = "cancelled"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusCreated,
	PaymentStatusRequiresConfirmation,
	PaymentStatusAuthenticating,
	PaymentStatusRequiresCustomerAction,
	PaymentStatusAuthorized,
	PaymentStatusAuthenticationFailed,
	PaymentStatusCaptured,
	PaymentStatusCaptureFailed,
	PaymentStatusCancelled,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the confirmation lifecycle.
// Once terminal, a payment is never forwarded to a connector again.
func (p PaymentStatus) IsTerminal() bool {
	switch p {
	case PaymentStatusAuthenticationFailed, PaymentStatusCaptured, PaymentStatusCaptureFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
