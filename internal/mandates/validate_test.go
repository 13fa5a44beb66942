package mandates

import (
	"testing"
	"time"

	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

func validOnlineData() MandateData {
	return MandateData{
		CustomerAcceptance: CustomerAcceptance{
			AcceptanceType: enums.AcceptanceTypeOnline,
			AcceptedAt:     time.Now().UTC(),
			IPAddress:      "203.0.113.7",
			UserAgent:      "Mozilla/5.0",
		},
		MandateType: enums.MandateTypeSingleUse,
		Amount:      "49.99",
		Currency:    "USD",
	}
}

func expectInvalid(t *testing.T, data MandateData) {
	t.Helper()
	_, err := Validate(data)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeInvalidMandate {
		t.Fatalf("expected invalid mandate error, got %v", err)
	}
}

func TestValidateOnlineAcceptance(t *testing.T) {
	validated, err := Validate(validOnlineData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validated.AmountCents != 4999 {
		t.Fatalf("expected 4999 cents, got %d", validated.AmountCents)
	}
	if validated.Currency != enums.CurrencyUSD {
		t.Fatalf("expected USD, got %s", validated.Currency)
	}
}

func TestValidateOnlineRequiresIP(t *testing.T) {
	data := validOnlineData()
	data.CustomerAcceptance.IPAddress = ""
	expectInvalid(t, data)
}

func TestValidateOnlineRequiresUserAgent(t *testing.T) {
	data := validOnlineData()
	data.CustomerAcceptance.UserAgent = ""
	expectInvalid(t, data)
}

func TestValidateOfflineToleratesMissingDevice(t *testing.T) {
	data := validOnlineData()
	data.CustomerAcceptance.AcceptanceType = enums.AcceptanceTypeOffline
	data.CustomerAcceptance.IPAddress = ""
	data.CustomerAcceptance.UserAgent = ""
	if _, err := Validate(data); err != nil {
		t.Fatalf("offline acceptance should not require device data: %v", err)
	}
}

func TestValidateRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-1.00", "abc", ""} {
		data := validOnlineData()
		data.Amount = amount
		expectInvalid(t, data)
	}
}

func TestValidateRejectsSubCentAmount(t *testing.T) {
	data := validOnlineData()
	data.Amount = "10.999"
	expectInvalid(t, data)
}

func TestValidateRejectsUnknownCurrency(t *testing.T) {
	data := validOnlineData()
	data.Currency = "ZZZ"
	expectInvalid(t, data)
}

func TestValidateMultiUseWindow(t *testing.T) {
	start := time.Now().UTC()
	end := start.Add(30 * 24 * time.Hour)

	data := validOnlineData()
	data.MandateType = enums.MandateTypeMultiUse
	data.StartDate = &start
	data.EndDate = &end
	if _, err := Validate(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// inverted window
	data.StartDate = &end
	data.EndDate = &start
	expectInvalid(t, data)

	// equal bounds
	data.StartDate = &start
	data.EndDate = &start
	expectInvalid(t, data)
}

func TestValidateMultiUseWindowOptional(t *testing.T) {
	data := validOnlineData()
	data.MandateType = enums.MandateTypeMultiUse
	if _, err := Validate(data); err != nil {
		t.Fatalf("window should be optional: %v", err)
	}
}

func TestValidateSingleUseRejectsWindow(t *testing.T) {
	start := time.Now().UTC()
	data := validOnlineData()
	data.StartDate = &start
	expectInvalid(t, data)
}
