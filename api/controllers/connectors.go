package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/api/responses"
	"github.com/velopay/payswitch-backend/api/validators"
	"github.com/velopay/payswitch-backend/internal/registry"
	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type activateConnectorRequest struct {
	ProfileID     string          `json:"profile_id" validate:"required,uuid"`
	ConnectorName string          `json:"connector_name" validate:"required"`
	ConnectorType string          `json:"connector_type" validate:"required"`
	AuthType      string          `json:"auth_type" validate:"required"`
	CredentialRef string          `json:"credential_ref" validate:"required"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	TestMode      bool            `json:"test_mode"`
}

type connectorConfigResponse struct {
	ID            uuid.UUID               `json:"id"`
	ProfileID     uuid.UUID               `json:"profile_id"`
	ConnectorName string                  `json:"connector_name"`
	ConnectorType enums.ConnectorType     `json:"connector_type"`
	AuthType      enums.ConnectorAuthType `json:"auth_type"`
	CredentialRef string                  `json:"credential_ref"`
	TestMode      bool                    `json:"test_mode"`
	Disabled      bool                    `json:"disabled"`
	Status        enums.ConnectorStatus   `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
}

func newConnectorConfigResponse(config *models.ConnectorConfig) connectorConfigResponse {
	return connectorConfigResponse{
		ID:            config.ID,
		ProfileID:     config.ProfileID,
		ConnectorName: config.ConnectorName,
		ConnectorType: config.ConnectorType,
		AuthType:      config.AuthType,
		CredentialRef: config.CredentialRef,
		TestMode:      config.TestMode,
		Disabled:      config.Disabled,
		Status:        config.Status,
		CreatedAt:     config.CreatedAt,
	}
}

// accountFromPath authenticates the path accountId against the api key's
// account. Cross-account paths read as not found rather than forbidden.
func accountFromPath(r *http.Request) (*models.MerchantAccount, error) {
	account, err := requireAccount(r)
	if err != nil {
		return nil, err
	}
	accountID, err := validators.UUIDParam(r, "accountId")
	if err != nil {
		return nil, err
	}
	if accountID != account.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant account not found")
	}
	return account, nil
}

// ActivateConnector installs a connector configuration on a business profile.
func ActivateConnector(svc *registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req activateConnectorRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profileID, err := uuid.Parse(req.ProfileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "profile_id must be a valid uuid"))
			return
		}

		config, err := svc.Activate(r.Context(), profileID, registry.ActivateInput{
			MerchantAccountID: account.ID,
			ConnectorName:     req.ConnectorName,
			ConnectorType:     enums.ConnectorType(req.ConnectorType),
			AuthType:          enums.ConnectorAuthType(req.AuthType),
			CredentialRef:     req.CredentialRef,
			Metadata:          req.Metadata,
			TestMode:          req.TestMode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newConnectorConfigResponse(config))
	}
}

// ListConnectors returns every connector configured under the account.
func ListConnectors(svc *registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByAccount(r.Context(), account.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]connectorConfigResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newConnectorConfigResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// DisableConnector takes a connector out of resolution.
func DisableConnector(svc *registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		configID, err := validators.UUIDParam(r, "configId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		config, err := svc.Disable(r.Context(), account.ID, configID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newConnectorConfigResponse(config))
	}
}
