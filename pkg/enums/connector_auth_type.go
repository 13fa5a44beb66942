package enums

import "fmt"

// ConnectorAuthType describes how credentials are presented to a connector.
type ConnectorAuthType string

const (
	ConnectorAuthTypeHeaderKey   ConnectorAuthType = "header_key"
	ConnectorAuthTypeBodyKey     ConnectorAuthType = "body_key"
	ConnectorAuthTypeCertificate ConnectorAuthType = "certificate"
)

var validConnectorAuthTypes = []ConnectorAuthType{
	ConnectorAuthTypeHeaderKey,
	ConnectorAuthTypeBodyKey,
	ConnectorAuthTypeCertificate,
}

// String implements fmt.Stringer.
func (c ConnectorAuthType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ConnectorAuthType) IsValid() bool {
	for _, candidate := range validConnectorAuthTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConnectorAuthType converts raw input into a ConnectorAuthType.
func ParseConnectorAuthType(value string) (ConnectorAuthType, error) {
	for _, candidate := range validConnectorAuthTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid connector auth type %q", value)
}
