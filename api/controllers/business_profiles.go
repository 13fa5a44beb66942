package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/api/validators"
	"github.com/velopay/payswitch-backend/internal/profiles"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/logger"
	"github.com/velopay/payswitch-backend/pkg/types"
)

type upsertProfileRequest struct {
	Name                  string                                `json:"name,omitempty"`
	ReturnURL             *string                               `json:"return_url,omitempty" validate:"omitempty,url"`
	Force3DSChallenge     *bool                                 `json:"force_3ds_challenge,omitempty"`
	IsAutoRetriesEnabled  *bool                                 `json:"is_auto_retries_enabled,omitempty"`
	MaxAutoRetries        *int                                  `json:"max_auto_retries,omitempty"`
	ConnectorAgnosticMIT  *bool                                 `json:"is_connector_agnostic_mit_enabled,omitempty"`
	IsClickToPayEnabled   *bool                                 `json:"is_click_to_pay_enabled,omitempty"`
	AuthenticationDetails *types.AuthenticationConnectorDetails `json:"authentication_connector_details,omitempty"`
	WebhookDetails        *types.WebhookDetails                 `json:"webhook_details,omitempty"`
}

type profileResponse struct {
	ID                    uuid.UUID                             `json:"id"`
	Name                  string                                `json:"name"`
	ReturnURL             *string                               `json:"return_url,omitempty"`
	Force3DSChallenge     *bool                                 `json:"force_3ds_challenge,omitempty"`
	IsAutoRetriesEnabled  *bool                                 `json:"is_auto_retries_enabled,omitempty"`
	MaxAutoRetries        *int                                  `json:"max_auto_retries,omitempty"`
	ConnectorAgnosticMIT  *bool                                 `json:"is_connector_agnostic_mit_enabled,omitempty"`
	IsClickToPayEnabled   *bool                                 `json:"is_click_to_pay_enabled,omitempty"`
	AuthenticationDetails *types.AuthenticationConnectorDetails `json:"authentication_connector_details,omitempty"`
	WebhookDetails        *types.WebhookDetails                 `json:"webhook_details,omitempty"`
	CreatedAt             time.Time                             `json:"created_at"`
	UpdatedAt             time.Time                             `json:"updated_at"`
}

func newProfileResponse(profile *models.BusinessProfile) profileResponse {
	return profileResponse{
		ID:                    profile.ID,
		Name:                  profile.Name,
		ReturnURL:             profile.ReturnURL,
		Force3DSChallenge:     profile.Force3DSChallenge,
		IsAutoRetriesEnabled:  profile.IsAutoRetriesEnabled,
		MaxAutoRetries:        profile.MaxAutoRetries,
		ConnectorAgnosticMIT:  profile.ConnectorAgnosticMIT,
		IsClickToPayEnabled:   profile.IsClickToPayEnabled,
		AuthenticationDetails: profile.AuthenticationConnectorDetails,
		WebhookDetails:        profile.WebhookDetails,
		CreatedAt:             profile.CreatedAt,
		UpdatedAt:             profile.UpdatedAt,
	}
}

// UpsertBusinessProfile creates or updates a business profile under the
// caller's account.
func UpsertBusinessProfile(svc *profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profileID, err := validators.UUIDParam(r, "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req upsertProfileRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Upsert(r.Context(), account.ID, profileID, profiles.UpsertProfileInput{
			Name:                  req.Name,
			ReturnURL:             req.ReturnURL,
			Force3DSChallenge:     req.Force3DSChallenge,
			IsAutoRetriesEnabled:  req.IsAutoRetriesEnabled,
			MaxAutoRetries:        req.MaxAutoRetries,
			ConnectorAgnosticMIT:  req.ConnectorAgnosticMIT,
			IsClickToPayEnabled:   req.IsClickToPayEnabled,
			AuthenticationDetails: req.AuthenticationDetails,
			WebhookDetails:        req.WebhookDetails,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}

// GetBusinessProfile returns a profile scoped to the caller's account.
func GetBusinessProfile(svc *profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profileID, err := validators.UUIDParam(r, "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), account.ID, profileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}
