package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/api/validators"
	"github.com/velopay/payswitch-backend/internal/mandates"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type mandateResponse struct {
	ID                  uuid.UUID            `json:"id"`
	CustomerID          *string              `json:"customer_id,omitempty"`
	OriginalPaymentID   uuid.UUID            `json:"original_payment_id"`
	AcceptanceType      enums.AcceptanceType `json:"acceptance_type"`
	AcceptedAt          time.Time            `json:"accepted_at"`
	MandateType         enums.MandateType    `json:"mandate_type"`
	AmountCents         int64                `json:"amount_cents"`
	AmountCapturedCents int64                `json:"amount_captured_cents"`
	Currency            enums.Currency       `json:"currency"`
	StartDate           *time.Time           `json:"start_date,omitempty"`
	EndDate             *time.Time           `json:"end_date,omitempty"`
	Status              enums.MandateStatus  `json:"status"`
	ConnectorName       *string              `json:"connector_name,omitempty"`
	ConnectorMandateID  *string              `json:"connector_mandate_id,omitempty"`
	Metadata            json.RawMessage      `json:"metadata,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

func newMandateResponse(mandate *models.Mandate) mandateResponse {
	return mandateResponse{
		ID:                  mandate.ID,
		CustomerID:          mandate.CustomerID,
		OriginalPaymentID:   mandate.OriginalPaymentID,
		AcceptanceType:      mandate.AcceptanceType,
		AcceptedAt:          mandate.AcceptedAt,
		MandateType:         mandate.MandateType,
		AmountCents:         mandate.AmountCents,
		AmountCapturedCents: mandate.AmountCapturedCents,
		Currency:            mandate.Currency,
		StartDate:           mandate.StartDate,
		EndDate:             mandate.EndDate,
		Status:              mandate.Status,
		ConnectorName:       mandate.ConnectorName,
		ConnectorMandateID:  mandate.ConnectorMandateID,
		Metadata:            mandate.Metadata,
		CreatedAt:           mandate.CreatedAt,
	}
}

func mandateListQuery(r *http.Request) (mandates.ListQuery, error) {
	var query mandates.ListQuery
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status := enums.MandateStatus(raw)
		if !status.IsValid() {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		query.Status = &status
	}
	if raw := q.Get("mandate_type"); raw != "" {
		mandateType := enums.MandateType(raw)
		if !mandateType.IsValid() {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "invalid mandate_type filter")
		}
		query.MandateType = &mandateType
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a non-negative integer")
		}
		query.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "offset must be a non-negative integer")
		}
		query.Offset = offset
	}
	return query, nil
}

// ListMandates returns the account's mandates with optional status,
// mandate_type, limit and offset filters.
func ListMandates(svc *mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query, err := mandateListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByMerchant(r.Context(), account.ID, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]mandateResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newMandateResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetMandate returns a single mandate scoped to the caller's account.
func GetMandate(svc *mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mandateID, err := validators.UUIDParam(r, "mandateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mandate, err := svc.Get(r.Context(), account.ID, mandateID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMandateResponse(mandate))
	}
}

// RevokeMandate revokes an active or pending mandate.
func RevokeMandate(svc *mandates.Service, runner txRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mandateID, err := validators.UUIDParam(r, "mandateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var mandate *models.Mandate
		err = runner.WithTx(r.Context(), func(tx *gorm.DB) error {
			revoked, err := svc.Revoke(r.Context(), tx, account.ID, mandateID)
			if err != nil {
				return err
			}
			mandate = revoked
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMandateResponse(mandate))
	}
}

// ListCustomerMandates returns the mandates the given customer holds under
// the caller's account.
func ListCustomerMandates(svc *mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID := chi.URLParam(r, "customerId")

		rows, err := svc.ListByCustomer(r.Context(), account.ID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]mandateResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newMandateResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
