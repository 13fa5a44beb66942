package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/api/middleware"
	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/api/validators"
	"github.com/velopay/payswitch-backend/internal/mandates"
	"github.com/velopay/payswitch-backend/internal/payments"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type createPaymentRequest struct {
	ProfileID         string          `json:"profile_id" validate:"required,uuid"`
	CustomerID        *string         `json:"customer_id,omitempty"`
	AmountCents       int64           `json:"amount_cents" validate:"gt=0"`
	Currency          string          `json:"currency" validate:"required"`
	PaymentMethod     string          `json:"payment_method" validate:"required"`
	PaymentMethodType string          `json:"payment_method_type" validate:"required"`
	PaymentMethodData json.RawMessage `json:"payment_method_data,omitempty"`
	SetupFutureUsage  string          `json:"setup_future_usage,omitempty"`
	PaymentType       string          `json:"payment_type,omitempty"`
	MandateID         *string         `json:"mandate_id,omitempty"`
}

type confirmPaymentRequest struct {
	MandateData *mandates.MandateData `json:"mandate_data,omitempty"`
}

type paymentResponse struct {
	ID                  uuid.UUID               `json:"id"`
	ProfileID           uuid.UUID               `json:"profile_id"`
	CustomerID          *string                 `json:"customer_id,omitempty"`
	AmountCents         int64                   `json:"amount_cents"`
	AmountCapturedCents *int64                  `json:"amount_captured_cents,omitempty"`
	Currency            enums.Currency          `json:"currency"`
	PaymentMethod       enums.PaymentMethod     `json:"payment_method"`
	PaymentMethodType   enums.PaymentMethodType `json:"payment_method_type"`
	SetupFutureUsage    enums.SetupFutureUsage  `json:"setup_future_usage"`
	PaymentType         enums.PaymentType       `json:"payment_type"`
	Status              enums.PaymentStatus     `json:"status"`
	MandateID           *uuid.UUID              `json:"mandate_id,omitempty"`
	ConnectorName       *string                 `json:"connector_name,omitempty"`
	ConnectorPaymentID  *string                 `json:"connector_payment_id,omitempty"`
	FailureCode         *string                 `json:"failure_code,omitempty"`
	FailureMessage      *string                 `json:"failure_message,omitempty"`
	NextAction          *payments.NextAction    `json:"next_action,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

func newPaymentResponse(payment *models.Payment, nextAction *payments.NextAction) paymentResponse {
	return paymentResponse{
		ID:                  payment.ID,
		ProfileID:           payment.ProfileID,
		CustomerID:          payment.CustomerID,
		AmountCents:         payment.AmountCents,
		AmountCapturedCents: payment.AmountCapturedCents,
		Currency:            payment.Currency,
		PaymentMethod:       payment.PaymentMethod,
		PaymentMethodType:   payment.PaymentMethodType,
		SetupFutureUsage:    payment.SetupFutureUsage,
		PaymentType:         payment.PaymentType,
		Status:              payment.Status,
		MandateID:           payment.MandateID,
		ConnectorName:       payment.ConnectorName,
		ConnectorPaymentID:  payment.ConnectorPaymentID,
		FailureCode:         payment.FailureCode,
		FailureMessage:      payment.FailureMessage,
		NextAction:          nextAction,
		CreatedAt:           payment.CreatedAt,
	}
}

func requireAccount(r *http.Request) (*models.MerchantAccount, error) {
	account := middleware.MerchantAccountFromContext(r.Context())
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "merchant account required")
	}
	return account, nil
}

// CreatePayment registers a payment in requires_confirmation.
func CreatePayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profileID, err := uuid.Parse(req.ProfileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid profile_id"))
			return
		}

		input := payments.CreateInput{
			CustomerID:        req.CustomerID,
			AmountCents:       req.AmountCents,
			Currency:          enums.Currency(req.Currency),
			PaymentMethod:     enums.PaymentMethod(req.PaymentMethod),
			PaymentMethodType: enums.PaymentMethodType(req.PaymentMethodType),
			PaymentMethodData: req.PaymentMethodData,
			SetupFutureUsage:  enums.SetupFutureUsage(req.SetupFutureUsage),
			PaymentType:       enums.PaymentType(req.PaymentType),
		}
		if req.MandateID != nil {
			mandateID, err := uuid.Parse(*req.MandateID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mandate_id"))
				return
			}
			input.MandateID = &mandateID
		}

		payment, err := svc.Create(r.Context(), account.ID, profileID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment, nil))
	}
}

// GetPayment returns a payment scoped to the caller's account.
func GetPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.UUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), account.ID, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(payment, nil))
	}
}

// ConfirmPayment drives the payment through authentication and capture.
func ConfirmPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.UUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmPaymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Confirm(r.Context(), account.ID, paymentID, payments.ConfirmRequest{
			MandateData: req.MandateData,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(result.Payment, result.NextAction))
	}
}

// CancelPayment abandons a non-terminal payment.
func CancelPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.UUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Cancel(r.Context(), account.ID, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(payment, nil))
	}
}
