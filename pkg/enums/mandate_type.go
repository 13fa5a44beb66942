package enums

import "fmt"

// MandateType is the consent variant: one charge or many within a window.
type MandateType string

const (
	MandateTypeSingleUse MandateType = "single_use"
	MandateTypeMultiUse  MandateType = "multi_use"
)

var validMandateTypes = []MandateType{
	MandateTypeSingleUse,
	MandateTypeMultiUse,
}

// String implements fmt.Stringer.
func (m MandateType) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m MandateType) IsValid() bool {
	for _, candidate := range validMandateTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMandateType converts raw input into a MandateType.
func ParseMandateType(value string) (MandateType, error) {
	for _, candidate := range validMandateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mandate type %q", value)
}
