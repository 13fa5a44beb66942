package enums

import "fmt"

// PaymentMethodType narrows the instrument family to a concrete scheme.
type PaymentMethodType string

const (
	PaymentMethodTypeCredit     PaymentMethodType = "credit"
	PaymentMethodTypeDebit      PaymentMethodType = "debit"
	PaymentMethodTypeApplePay   PaymentMethodType = "apple_pay"
	PaymentMethodTypeGooglePay  PaymentMethodType = "google_pay"
	PaymentMethodTypeACH        PaymentMethodType = "ach"
	PaymentMethodTypeSepa       PaymentMethodType = "sepa"
	PaymentMethodTypeClickToPay PaymentMethodType = "click_to_pay"
)

var validPaymentMethodTypes = []PaymentMethodType{
	PaymentMethodTypeCredit,
	PaymentMethodTypeDebit,
	PaymentMethodTypeApplePay,
	PaymentMethodTypeGooglePay,
	PaymentMethodTypeACH,
	PaymentMethodTypeSepa,
	PaymentMethodTypeClickToPay,
}

// String implements fmt.Stringer.
func (p PaymentMethodType) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentMethodType) IsValid() bool {
	for _, candidate := range validPaymentMethodTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// Requires3DS reports whether card-scheme rules mandate 3-D Secure for the
// instrument. Raw card rails require it; tokenized wallets and bank rails
// carry their own authentication.
func (p PaymentMethodType) Requires3DS() bool {
	switch p {
	case PaymentMethodTypeCredit, PaymentMethodTypeDebit, PaymentMethodTypeClickToPay:
		return true
	default:
		return false
	}
}

// ParsePaymentMethodType converts raw input into a PaymentMethodType.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	for _, candidate := range validPaymentMethodTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method type %q", value)
}
