package enums

import "fmt"

// ConnectorStatus marks whether a configured connector participates in routing.
type ConnectorStatus string

const (
	ConnectorStatusActive   ConnectorStatus = "active"
	ConnectorStatusInactive ConnectorStatus = "inactive"
)

var validConnectorStatuses = []ConnectorStatus{
	ConnectorStatusActive,
	ConnectorStatusInactive,
}

// String implements fmt.Stringer.
func (c ConnectorStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ConnectorStatus) IsValid() bool {
	for _, candidate := range validConnectorStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConnectorStatus converts raw input into a ConnectorStatus.
func ParseConnectorStatus(value string) (ConnectorStatus, error) {
	for _, candidate := range validConnectorStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid connector status %q", value)
}
