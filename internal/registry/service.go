package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

const activateCASAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the connector registry.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Logger *logger.Logger
}

// Service resolves and activates connector configurations.
type Service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds a connector registry service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, logg: params.Logger}, nil
}

// Resolve returns the connector a confirmation should use. Disabled and
// inactive rows never resolve. More than one active authentication connector
// violates the activation invariant and is surfaced, not silently picked from.
func (s *Service) Resolve(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) (*models.ConnectorConfig, error) {
	rows, err := s.repo.FindActive(ctx, profileID, connectorType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving connector")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConnectorNotConfigured,
			fmt.Sprintf("no active %s configured for profile %s", connectorType, profileID))
	}
	if connectorType == enums.ConnectorTypeAuthenticationProcessor && len(rows) > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeAmbiguousConnector,
			fmt.Sprintf("%d active authentication connectors for profile %s", len(rows), profileID))
	}
	return &rows[0], nil
}

// ActivateInput describes the connector to activate.
type ActivateInput struct {
	MerchantAccountID uuid.UUID
	ConnectorName     string
	ConnectorType     enums.ConnectorType
	AuthType          enums.ConnectorAuthType
	CredentialRef     string
	Metadata          json.RawMessage
	TestMode          bool
}

func (in ActivateInput) validate() error {
	if in.ConnectorName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "connector_name is required")
	}
	if !in.ConnectorType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid connector_type %q", in.ConnectorType))
	}
	if !in.AuthType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid auth_type %q", in.AuthType))
	}
	if in.CredentialRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "credential_ref is required")
	}
	return nil
}

// Activate installs a connector as the active one for its type. The whole
// swap runs inside one transaction guarded by the profile's connector_version;
// losing the CAS re-reads and retries so concurrent activations serialize and
// exactly one connector stays active.
func (s *Service) Activate(ctx context.Context, profileID uuid.UUID, input ActivateInput) (*models.ConnectorConfig, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var activated *models.ConnectorConfig
	var lastErr error
	for attempt := 0; attempt < activateCASAttempts; attempt++ {
		swapped := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			version, found, err := repo.ProfileVersion(ctx, profileID)
			if err != nil {
				return err
			}
			if !found {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("business profile %s not found", profileID))
			}

			ok, err := repo.BumpProfileVersion(ctx, profileID, version)
			if err != nil {
				return err
			}
			if !ok {
				return nil // lost the race, retry outside the tx
			}
			swapped = true

			if input.ConnectorType == enums.ConnectorTypeAuthenticationProcessor {
				if err := repo.DeactivateActive(ctx, profileID, input.ConnectorType); err != nil {
					return err
				}
			}

			config := &models.ConnectorConfig{
				ID:                uuid.New(),
				ProfileID:         profileID,
				MerchantAccountID: input.MerchantAccountID,
				ConnectorName:     input.ConnectorName,
				ConnectorType:     input.ConnectorType,
				AuthType:          input.AuthType,
				CredentialRef:     input.CredentialRef,
				Metadata:          input.Metadata,
				TestMode:          input.TestMode,
				Status:            enums.ConnectorStatusActive,
			}
			if err := repo.Create(ctx, config); err != nil {
				return err
			}
			activated = config
			return nil
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating connector")
		}
		if swapped {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"profile_id":     profileID.String(),
				"connector_name": input.ConnectorName,
				"connector_type": input.ConnectorType,
			})
			s.logg.Info(logCtx, "connector activated")
			return activated, nil
		}
		lastErr = pkgerrors.New(pkgerrors.CodeStateConflict, "concurrent connector activation in progress")
	}
	return nil, lastErr
}

// Disable takes a connector out of resolution without deleting its history.
func (s *Service) Disable(ctx context.Context, accountID, configID uuid.UUID) (*models.ConnectorConfig, error) {
	config, err := s.repo.FindByID(ctx, configID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading connector config")
	}
	if config == nil || config.MerchantAccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("connector config %s not found", configID))
	}
	config.Disabled = true
	config.Status = enums.ConnectorStatusInactive
	if err := s.repo.Update(ctx, config); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "disabling connector")
	}
	return config, nil
}

// ListByAccount returns every connector configured under the account.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.ConnectorConfig, error) {
	rows, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing connectors")
	}
	return rows, nil
}
