package mandates

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

// CustomerAcceptance captures how the customer agreed to the mandate.
type CustomerAcceptance struct {
	AcceptanceType enums.AcceptanceType `json:"acceptance_type"`
	AcceptedAt     time.Time            `json:"accepted_at"`
	IPAddress      string               `json:"ip_address,omitempty"`
	UserAgent      string               `json:"user_agent,omitempty"`
}

// MandateData is the raw mandate request before validation.
type MandateData struct {
	CustomerAcceptance CustomerAcceptance `json:"customer_acceptance"`
	MandateType        enums.MandateType  `json:"mandate_type"`
	Amount             string             `json:"amount"`
	Currency           string             `json:"currency"`
	StartDate          *time.Time         `json:"start_date,omitempty"`
	EndDate            *time.Time         `json:"end_date,omitempty"`
	Metadata           map[string]any     `json:"metadata,omitempty"`
}

// ValidatedMandate is the outcome of a successful validation.
type ValidatedMandate struct {
	Acceptance  CustomerAcceptance
	MandateType enums.MandateType
	AmountCents int64
	Currency    enums.Currency
	StartDate   *time.Time
	EndDate     *time.Time
	Metadata    map[string]any
}

// Validate checks mandate data synchronously. It is pure; no I/O and no
// persistence, so the confirmation gate can call it before any connector work.
func Validate(data MandateData) (*ValidatedMandate, error) {
	if !data.CustomerAcceptance.AcceptanceType.IsValid() {
		return nil, invalid(fmt.Sprintf("invalid acceptance_type %q", data.CustomerAcceptance.AcceptanceType))
	}
	if data.CustomerAcceptance.AcceptedAt.IsZero() {
		return nil, invalid("accepted_at is required")
	}

	// Online acceptance must carry the device fingerprint; offline tolerates
	// its absence.
	if data.CustomerAcceptance.AcceptanceType == enums.AcceptanceTypeOnline {
		if data.CustomerAcceptance.IPAddress == "" {
			return nil, invalid("ip_address is required for online acceptance")
		}
		if data.CustomerAcceptance.UserAgent == "" {
			return nil, invalid("user_agent is required for online acceptance")
		}
	}

	if !data.MandateType.IsValid() {
		return nil, invalid(fmt.Sprintf("invalid mandate_type %q", data.MandateType))
	}

	amount, err := decimal.NewFromString(data.Amount)
	if err != nil {
		return nil, invalid(fmt.Sprintf("unparseable amount %q", data.Amount))
	}
	if !amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return nil, invalid("amount has more than two decimal places")
	}

	currency, err := enums.ParseCurrency(data.Currency)
	if err != nil {
		return nil, invalid(fmt.Sprintf("unrecognized currency %q", data.Currency))
	}

	if data.MandateType == enums.MandateTypeMultiUse {
		if data.StartDate != nil && data.EndDate != nil && !data.EndDate.After(*data.StartDate) {
			return nil, invalid("end_date must be after start_date")
		}
	} else if data.StartDate != nil || data.EndDate != nil {
		return nil, invalid("single_use mandates do not take a validity window")
	}

	return &ValidatedMandate{
		Acceptance:  data.CustomerAcceptance,
		MandateType: data.MandateType,
		AmountCents: cents.IntPart(),
		Currency:    currency,
		StartDate:   data.StartDate,
		EndDate:     data.EndDate,
		Metadata:    data.Metadata,
	}, nil
}

func invalid(message string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidMandate, message)
}
