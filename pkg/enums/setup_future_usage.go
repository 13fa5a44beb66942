package enums

import "fmt"

// SetupFutureUsage records whether the instrument may be charged later.
type SetupFutureUsage string

const (
	SetupFutureUsageOffSession SetupFutureUsage = "off_session"
	SetupFutureUsageOnSession  SetupFutureUsage = "on_session"
	SetupFutureUsageNone       SetupFutureUsage = "none"
)

var validSetupFutureUsages = []SetupFutureUsage{
	SetupFutureUsageOffSession,
	SetupFutureUsageOnSession,
	SetupFutureUsageNone,
}

// String implements fmt.Stringer.
func (s SetupFutureUsage) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SetupFutureUsage) IsValid() bool {
	for _, candidate := range validSetupFutureUsages {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSetupFutureUsage converts raw input into a SetupFutureUsage.
func ParseSetupFutureUsage(value string) (SetupFutureUsage, error) {
	for _, candidate := range validSetupFutureUsages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid setup_future_usage %q", value)
}
