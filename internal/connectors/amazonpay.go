package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

const (
	amazonpayName    = "amazonpay"
	amazonpayBaseURL = "https://pay-api.amazon.com/v2"
	amazonpaySandbox = "https://pay-api.amazon.com/sandbox/v2"
)

func init() {
	RegisterProcessor(amazonpayName, newAmazonpay)
}

type amazonpay struct {
	privateKey string
	baseURL    string
	client     *http.Client
}

func newAmazonpay(cfg Config) (Processor, error) {
	if cfg.Credential == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConnectorNotConfigured, "amazonpay private key missing")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = amazonpayBaseURL
		if cfg.TestMode {
			baseURL = amazonpaySandbox
		}
	}
	return &amazonpay{
		privateKey: cfg.Credential,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     cfg.httpClient(),
	}, nil
}

type amazonpayChargeRequest struct {
	MerchantReferenceID string              `json:"merchantReferenceId"`
	ChargeAmount        amazonpayAmount     `json:"chargeAmount"`
	CaptureNow          bool                `json:"captureNow"`
	SetupFutureUsage    bool                `json:"setupFutureUsage,omitempty"`
	MandateReference    string              `json:"mandateReference,omitempty"`
	PaymentDetail       amazonpayDetailBody `json:"paymentDetail"`
}

type amazonpayAmount struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type amazonpayDetailBody struct {
	Cavv string `json:"cavv,omitempty"`
	ECI  string `json:"eci,omitempty"`
}

type amazonpayChargeResponse struct {
	ChargeID      string          `json:"chargeId"`
	MandateID     string          `json:"mandateId"`
	StatusDetails amazonpayStatus `json:"statusDetails"`
	CaptureAmount amazonpayAmount `json:"captureAmount"`
	ReasonCode    string          `json:"reasonCode"`
	ReasonMessage string          `json:"message"`
}

type amazonpayStatus struct {
	State      string `json:"state"`
	ReasonCode string `json:"reasonCode"`
}

func centsToAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (c *amazonpay) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	body := amazonpayChargeRequest{
		MerchantReferenceID: req.PaymentID.String(),
		ChargeAmount: amazonpayAmount{
			Amount:       centsToAmount(req.AmountCents),
			CurrencyCode: string(req.Currency),
		},
		CaptureNow:       true,
		SetupFutureUsage: req.SetupMandate,
		MandateReference: req.ConnectorMandateID,
		PaymentDetail: amazonpayDetailBody{
			Cavv: req.Cavv,
			ECI:  req.ECI,
		},
	}

	var parsed amazonpayChargeResponse
	status, err := postJSON(ctx, c.client, c.baseURL+"/charges", map[string]string{
		"Authorization": "AMZN-PAY " + c.privateKey,
	}, body, &parsed)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return &AuthorizeResponse{
			Approved:       false,
			DeclineCode:    parsed.ReasonCode,
			DeclineMessage: parsed.ReasonMessage,
		}, nil
	}

	switch parsed.StatusDetails.State {
	case "Captured", "Completed":
		return &AuthorizeResponse{
			Approved:            true,
			ConnectorPaymentID:  parsed.ChargeID,
			ConnectorMandateID:  parsed.MandateID,
			AmountCapturedCents: req.AmountCents,
		}, nil
	default:
		return &AuthorizeResponse{
			Approved:       false,
			DeclineCode:    parsed.StatusDetails.ReasonCode,
			DeclineMessage: parsed.ReasonMessage,
		}, nil
	}
}

type amazonpayRefundRequest struct {
	ChargeID       string          `json:"chargeId"`
	RefundAmount   amazonpayAmount `json:"refundAmount"`
	SoftDescriptor string          `json:"softDescriptor,omitempty"`
}

type amazonpayRefundResponse struct {
	RefundID      string          `json:"refundId"`
	StatusDetails amazonpayStatus `json:"statusDetails"`
	ReasonMessage string          `json:"message"`
}

func (c *amazonpay) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	body := amazonpayRefundRequest{
		ChargeID: req.ConnectorPaymentID,
		RefundAmount: amazonpayAmount{
			Amount:       centsToAmount(req.AmountCents),
			CurrencyCode: string(req.Currency),
		},
		SoftDescriptor: req.Reason,
	}

	var parsed amazonpayRefundResponse
	status, err := postJSON(ctx, c.client, c.baseURL+"/refunds", map[string]string{
		"Authorization": "AMZN-PAY " + c.privateKey,
	}, body, &parsed)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return &RefundResponse{
			Approved:     false,
			ErrorCode:    parsed.StatusDetails.ReasonCode,
			ErrorMessage: parsed.ReasonMessage,
		}, nil
	}

	switch parsed.StatusDetails.State {
	case "Refunded", "RefundInitiated", "Pending":
		return &RefundResponse{Approved: true, ConnectorRefundID: parsed.RefundID}, nil
	default:
		return &RefundResponse{
			Approved:     false,
			ErrorCode:    parsed.StatusDetails.ReasonCode,
			ErrorMessage: parsed.ReasonMessage,
		}, nil
	}
}
