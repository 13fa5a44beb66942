package profiles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/types"
)

// ServiceParams groups dependencies for the profile service.
type ServiceParams struct {
	Repo Repository
}

// Service resolves effective policies and manages business profiles.
type Service struct {
	repo Repository
}

// NewService builds a profile service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// Resolve reads the account and profile and merges them into the effective
// policy. Always read-through; per-confirmation results are never cached.
func (s *Service) Resolve(ctx context.Context, accountID, profileID uuid.UUID) (*Policy, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading merchant account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("merchant account %s not found", accountID))
	}
	profile, err := s.repo.FindProfileForAccount(ctx, accountID, profileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading business profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("business profile %s not found", profileID))
	}
	policy := MergePolicy(account, profile)
	return &policy, nil
}

// AuthenticateAPIKey maps a raw api key onto its merchant account.
func (s *Service) AuthenticateAPIKey(ctx context.Context, apiKey string) (*models.MerchantAccount, error) {
	if apiKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "api key required")
	}
	account, err := s.repo.FindAccountByAPIKeyHash(ctx, HashAPIKey(apiKey))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up api key")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key")
	}
	return account, nil
}

// HashAPIKey derives the stored lookup hash for a raw api key.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// UpsertProfileInput carries the mutable profile fields.
type UpsertProfileInput struct {
	Name                  string
	ReturnURL             *string
	Force3DSChallenge     *bool
	IsAutoRetriesEnabled  *bool
	MaxAutoRetries        *int
	ConnectorAgnosticMIT  *bool
	IsClickToPayEnabled   *bool
	AuthenticationDetails *types.AuthenticationConnectorDetails
	WebhookDetails        *types.WebhookDetails
}

// Upsert creates the profile when it does not exist yet, otherwise applies
// the provided overrides. ConnectorVersion is never touched here; connector
// activation owns that counter.
func (s *Service) Upsert(ctx context.Context, accountID, profileID uuid.UUID, input UpsertProfileInput) (*models.BusinessProfile, error) {
	if input.MaxAutoRetries != nil && *input.MaxAutoRetries < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_auto_retries must not be negative")
	}
	if input.AuthenticationDetails != nil {
		if len(input.AuthenticationDetails.AuthenticationConnectors) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "authentication_connectors must not be empty")
		}
		if input.AuthenticationDetails.ThreeDSRequestorURL == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "three_ds_requestor_url is required")
		}
	}

	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading merchant account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("merchant account %s not found", accountID))
	}

	profile, err := s.repo.FindProfileForAccount(ctx, accountID, profileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading business profile")
	}

	if profile == nil {
		profile = &models.BusinessProfile{
			ID:                profileID,
			MerchantAccountID: accountID,
		}
		applyProfileInput(profile, input)
		if profile.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile name is required")
		}
		if err := s.repo.CreateProfile(ctx, profile); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating business profile")
		}
		return profile, nil
	}

	applyProfileInput(profile, input)
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating business profile")
	}
	return profile, nil
}

// Get returns a profile scoped to the account.
func (s *Service) Get(ctx context.Context, accountID, profileID uuid.UUID) (*models.BusinessProfile, error) {
	profile, err := s.repo.FindProfileForAccount(ctx, accountID, profileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading business profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("business profile %s not found", profileID))
	}
	return profile, nil
}

func applyProfileInput(profile *models.BusinessProfile, input UpsertProfileInput) {
	if input.Name != "" {
		profile.Name = input.Name
	}
	if input.ReturnURL != nil {
		profile.ReturnURL = input.ReturnURL
	}
	if input.Force3DSChallenge != nil {
		profile.Force3DSChallenge = input.Force3DSChallenge
	}
	if input.IsAutoRetriesEnabled != nil {
		profile.IsAutoRetriesEnabled = input.IsAutoRetriesEnabled
	}
	if input.MaxAutoRetries != nil {
		profile.MaxAutoRetries = input.MaxAutoRetries
	}
	if input.ConnectorAgnosticMIT != nil {
		profile.ConnectorAgnosticMIT = input.ConnectorAgnosticMIT
	}
	if input.IsClickToPayEnabled != nil {
		profile.IsClickToPayEnabled = input.IsClickToPayEnabled
	}
	if input.AuthenticationDetails != nil {
		profile.AuthenticationConnectorDetails = input.AuthenticationDetails
	}
	if input.WebhookDetails != nil {
		profile.WebhookDetails = input.WebhookDetails
	}
}
