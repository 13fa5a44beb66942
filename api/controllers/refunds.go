package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/api/validators"
	"github.com/velopay/payswitch-backend/internal/refunds"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type createRefundRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Reason      string `json:"reason,omitempty"`
}

type refundResponse struct {
	ID                uuid.UUID          `json:"id"`
	PaymentID         uuid.UUID          `json:"payment_id"`
	ConnectorName     string             `json:"connector_name"`
	ConnectorRefundID *string            `json:"connector_refund_id,omitempty"`
	RefundAmountCents int64              `json:"refund_amount_cents"`
	TotalAmountCents  int64              `json:"total_amount_cents"`
	Currency          enums.Currency     `json:"currency"`
	Status            enums.RefundStatus `json:"status"`
	Reason            *string            `json:"reason,omitempty"`
	ErrorCode         *string            `json:"error_code,omitempty"`
	ErrorMessage      *string            `json:"error_message,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

func newRefundResponse(refund *models.Refund) refundResponse {
	return refundResponse{
		ID:                refund.ID,
		PaymentID:         refund.PaymentID,
		ConnectorName:     refund.ConnectorName,
		ConnectorRefundID: refund.ConnectorRefundID,
		RefundAmountCents: refund.RefundAmountCents,
		TotalAmountCents:  refund.TotalAmountCents,
		Currency:          refund.Currency,
		Status:            refund.Status,
		Reason:            refund.Reason,
		ErrorCode:         refund.ErrorCode,
		ErrorMessage:      refund.ErrorMessage,
		CreatedAt:         refund.CreatedAt,
	}
}

// CreateRefund refunds part or all of a captured payment.
func CreateRefund(svc *refunds.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req createRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Create(r.Context(), account.ID, paymentID, refunds.CreateInput{
			AmountCents: req.AmountCents,
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRefundResponse(refund))
	}
}

// GetRefund returns a refund scoped to the caller's account.
func GetRefund(svc *refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refundID, err := validators.UUIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Get(r.Context(), account.ID, refundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundResponse(refund))
	}
}

// ListPaymentRefunds returns the refund history of a payment.
func ListPaymentRefunds(svc *refunds.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := svc.ListByPayment(r.Context(), account.ID, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]refundResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newRefundResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
