package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

const (
	threedsecureioName    = "threedsecureio"
	threedsecureioBaseURL = "https://service.3dsecure.io"
	threedsecureioSandbox = "https://service.sandbox.3dsecure.io"
)

func init() {
	RegisterAuthenticator(threedsecureioName, newThreedsecureio)
}

type threedsecureio struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newThreedsecureio(cfg Config) (Authenticator, error) {
	if cfg.Credential == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConnectorNotConfigured, "threedsecureio api key missing")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = threedsecureioBaseURL
		if cfg.TestMode {
			baseURL = threedsecureioSandbox
		}
	}
	return &threedsecureio{
		apiKey:  cfg.Credential,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  cfg.httpClient(),
	}, nil
}

type threedsAuthRequest struct {
	AcctNumber              json.RawMessage `json:"acctNumber,omitempty"`
	PurchaseAmount          string          `json:"purchaseAmount"`
	PurchaseCurrency        string          `json:"purchaseCurrency"`
	ThreeDSRequestorURL     string          `json:"threeDSRequestorURL"`
	ThreeDSRequestorAppURL  string          `json:"threeDSRequestorAppURL,omitempty"`
	ThreeDSRequestorChalInd string          `json:"threeDSRequestorChallengeInd,omitempty"`
	MessageCategory         string          `json:"messageCategory"`
	NotificationURL         string          `json:"notificationURL,omitempty"`
}

type threedsAuthResponse struct {
	ThreeDSServerTransID string `json:"threeDSServerTransID"`
	TransStatus          string `json:"transStatus"`
	AuthenticationValue  string `json:"authenticationValue"`
	ECI                  string `json:"eci"`
	MessageVersion       string `json:"messageVersion"`
	AcsURL               string `json:"acsURL"`
	ErrorCode            string `json:"errorCode"`
	ErrorDescription     string `json:"errorDescription"`
}

// challenge indicator 04 mandates a challenge per EMVCo; 01 lets the ACS
// decide.
func challengeIndicator(force bool) string {
	if force {
		return "04"
	}
	return "01"
}

func (c *threedsecureio) Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	body := threedsAuthRequest{
		AcctNumber:              req.PaymentMethodData,
		PurchaseAmount:          fmt.Sprintf("%d", req.AmountCents),
		PurchaseCurrency:        string(req.Currency),
		ThreeDSRequestorURL:     req.RequestorURL,
		ThreeDSRequestorAppURL:  req.RequestorAppURL,
		ThreeDSRequestorChalInd: challengeIndicator(req.ForceChallenge),
		MessageCategory:         "01",
		NotificationURL:         req.ReturnURL,
	}

	var parsed threedsAuthResponse
	status, err := postJSON(ctx, c.client, c.baseURL+"/auth", map[string]string{
		"APIKey": c.apiKey,
	}, body, &parsed)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return &AuthResponse{
			Outcome:      AuthOutcomeFailed,
			ErrorCode:    parsed.ErrorCode,
			ErrorMessage: parsed.ErrorDescription,
		}, nil
	}

	resp := &AuthResponse{
		ConnectorAuthID: parsed.ThreeDSServerTransID,
		Cavv:            parsed.AuthenticationValue,
		ECI:             parsed.ECI,
		ThreeDSVersion:  parsed.MessageVersion,
	}
	switch parsed.TransStatus {
	case "Y", "A":
		resp.Outcome = AuthOutcomeFrictionlessPass
	case "C", "D":
		resp.Outcome = AuthOutcomeChallenge
		resp.ChallengeURL = parsed.AcsURL
		resp.ContinuationToken = parsed.ThreeDSServerTransID
	default:
		resp.Outcome = AuthOutcomeFailed
		resp.ErrorCode = parsed.ErrorCode
		resp.ErrorMessage = parsed.ErrorDescription
	}
	return resp, nil
}
