package enums

import "fmt"

// MandateStatus tracks whether stored consent can still back a charge.
type MandateStatus string

const (
	MandateStatusActive   MandateStatus = "active"
	MandateStatusPending  MandateStatus = "pending"
	MandateStatusInactive MandateStatus = "inactive"
	MandateStatusRevoked  MandateStatus = "revoked"
)

var validMandateStatuses = []MandateStatus{
	MandateStatusActive,
	MandateStatusPending,
	MandateStatusInactive,
	MandateStatusRevoked,
}

// String implements fmt.Stringer.
func (m MandateStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m MandateStatus) IsValid() bool {
	for _, candidate := range validMandateStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMandateStatus converts raw input into a MandateStatus.
func ParseMandateStatus(value string) (MandateStatus, error) {
	for _, candidate := range validMandateStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mandate status %q", value)
}
