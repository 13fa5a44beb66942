package enums

import "fmt"

// AuthenticationStatus tracks a 3DS attempt through the orchestrator.
type AuthenticationStatus string

const (
	AuthenticationStatusNotStarted       AuthenticationStatus = "not_started"
	AuthenticationStatusRequested        AuthenticationStatus = "requested"
	AuthenticationStatusFrictionlessPass AuthenticationStatus = "frictionless_pass"
	AuthenticationStatusChallengePending AuthenticationStatus = "challenge_pending"
	AuthenticationStatusFailed           AuthenticationStatus = "failed"
	AuthenticationStatusConnectorError   AuthenticationStatus = "connector_error"
)

var validAuthenticationStatuses = []AuthenticationStatus{
	AuthenticationStatusNotStarted,
	AuthenticationStatusRequested,
	AuthenticationStatusFrictionlessPass,
	AuthenticationStatusChallengePending,
	AuthenticationStatusFailed,
	AuthenticationStatusConnectorError,
}

// String implements fmt.Stringer.
func (a AuthenticationStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuthenticationStatus) IsValid() bool {
	for _, candidate := range validAuthenticationStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt can no longer change. Terminal
// attempts are append-only history and must never be mutated.
func (a AuthenticationStatus) IsTerminal() bool {
	switch a {
	case AuthenticationStatusFrictionlessPass, AuthenticationStatusFailed, AuthenticationStatusConnectorError:
		return true
	default:
		return false
	}
}

// ParseAuthenticationStatus converts raw input into an AuthenticationStatus.
func ParseAuthenticationStatus(value string) (AuthenticationStatus, error) {
	for _, candidate := range validAuthenticationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid authentication status %q", value)
}
