package controllers

import (
	"net/http"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/api/validators"
	"github.com/velopay/payswitch-backend/internal/authentication"
	"github.com/velopay/payswitch-backend/internal/payments"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type challengeCallbackRequest struct {
	TransStatus  string `json:"trans_status" validate:"required"`
	Cavv         string `json:"cavv,omitempty"`
	ECI          string `json:"eci,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// AuthenticationCallback receives the connector's challenge outcome and
// resumes the suspended payment. The route is unauthenticated; the attempt id
// in the path is the only handle the connector holds.
func AuthenticationCallback(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID, err := validators.UUIDParam(r, "attemptId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req challengeCallbackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome := authentication.ChallengeOutcome{
			Passed:       req.TransStatus == "Y" || req.TransStatus == "A",
			Cavv:         req.Cavv,
			ECI:          req.ECI,
			ErrorCode:    req.ErrorCode,
			ErrorMessage: req.ErrorMessage,
		}

		result, err := svc.Resume(r.Context(), attemptID, outcome)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(result.Payment, result.NextAction))
	}
}
