package enums

import "fmt"

// ConnectorType splits integrations by the capability they provide.
type ConnectorType string

const (
	ConnectorTypeAuthenticationProcessor ConnectorType = "authentication_processor"
	ConnectorTypePaymentProcessor        ConnectorType = "payment_processor"
)

var validConnectorTypes = []ConnectorType{
	ConnectorTypeAuthenticationProcessor,
	ConnectorTypePaymentProcessor,
}

// String implements fmt.Stringer.
func (c ConnectorType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ConnectorType) IsValid() bool {
	for _, candidate := range validConnectorTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConnectorType converts raw input into a ConnectorType.
func ParseConnectorType(value string) (ConnectorType, error) {
	for _, candidate := range validConnectorTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid connector type %q", value)
}
