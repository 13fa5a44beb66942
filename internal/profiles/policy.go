package profiles

import (
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/types"
)

// Policy is the effective decision input for one confirmation. Profile
// overrides win over account defaults; a field absent on both falls back to
// the zero value, which keeps 3DS unforced and retries off.
type Policy struct {
	Force3DSChallenge           bool
	IsAutoRetriesEnabled        bool
	MaxAutoRetries              int
	ConnectorAgnosticMITEnabled bool
	IsClickToPayEnabled         bool
	ReturnURL                   string
	AuthenticationDetails       *types.AuthenticationConnectorDetails
}

// MergePolicy computes the effective policy. Pure; the resolver recomputes it
// on every confirmation instead of caching the result.
func MergePolicy(account *models.MerchantAccount, profile *models.BusinessProfile) Policy {
	policy := Policy{}
	if account != nil {
		policy.Force3DSChallenge = account.Force3DSChallenge
		policy.IsAutoRetriesEnabled = account.IsAutoRetriesEnabled
		policy.MaxAutoRetries = account.MaxAutoRetries
		policy.ConnectorAgnosticMITEnabled = account.ConnectorAgnosticMIT
		policy.IsClickToPayEnabled = account.IsClickToPayEnabled
		if account.ReturnURL != nil {
			policy.ReturnURL = *account.ReturnURL
		}
	}
	if profile == nil {
		return policy
	}
	if profile.Force3DSChallenge != nil {
		policy.Force3DSChallenge = *profile.Force3DSChallenge
	}
	if profile.IsAutoRetriesEnabled != nil {
		policy.IsAutoRetriesEnabled = *profile.IsAutoRetriesEnabled
	}
	if profile.MaxAutoRetries != nil {
		policy.MaxAutoRetries = *profile.MaxAutoRetries
	}
	if profile.ConnectorAgnosticMIT != nil {
		policy.ConnectorAgnosticMITEnabled = *profile.ConnectorAgnosticMIT
	}
	if profile.IsClickToPayEnabled != nil {
		policy.IsClickToPayEnabled = *profile.IsClickToPayEnabled
	}
	if profile.ReturnURL != nil {
		policy.ReturnURL = *profile.ReturnURL
	}
	if profile.AuthenticationConnectorDetails != nil {
		policy.AuthenticationDetails = profile.AuthenticationConnectorDetails
	}
	return policy
}
