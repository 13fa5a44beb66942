package enums

import "fmt"

// AcceptanceType records the channel on which customer consent was collected.
type AcceptanceType string

const (
	AcceptanceTypeOnline  AcceptanceType = "online"
	AcceptanceTypeOffline AcceptanceType = "offline"
)

var validAcceptanceTypes = []AcceptanceType{
	AcceptanceTypeOnline,
	AcceptanceTypeOffline,
}

// String implements fmt.Stringer.
func (a AcceptanceType) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AcceptanceType) IsValid() bool {
	for _, candidate := range validAcceptanceTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAcceptanceType converts raw input into an AcceptanceType.
func ParseAcceptanceType(value string) (AcceptanceType, error) {
	for _, candidate := range validAcceptanceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid acceptance type %q", value)
}
