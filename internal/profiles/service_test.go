package profiles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/types"
)

type stubRepo struct {
	account *models.MerchantAccount
	profile *models.BusinessProfile
	created *models.BusinessProfile
	updated *models.BusinessProfile
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error) {
	return s.account, nil
}
func (s *stubRepo) FindAccountByAPIKeyHash(ctx context.Context, hash string) (*models.MerchantAccount, error) {
	if s.account != nil && s.account.APIKeyHash == hash {
		return s.account, nil
	}
	return nil, nil
}
func (s *stubRepo) FindProfile(ctx context.Context, id uuid.UUID) (*models.BusinessProfile, error) {
	return s.profile, nil
}
func (s *stubRepo) FindProfileForAccount(ctx context.Context, accountID, profileID uuid.UUID) (*models.BusinessProfile, error) {
	return s.profile, nil
}
func (s *stubRepo) CreateProfile(ctx context.Context, profile *models.BusinessProfile) error {
	s.created = profile
	return nil
}
func (s *stubRepo) UpdateProfile(ctx context.Context, profile *models.BusinessProfile) error {
	s.updated = profile
	return nil
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestMergePolicyProfileOverridesAccount(t *testing.T) {
	account := &models.MerchantAccount{
		Force3DSChallenge:    true,
		IsAutoRetriesEnabled: true,
		MaxAutoRetries:       5,
	}
	profile := &models.BusinessProfile{
		Force3DSChallenge: boolPtr(false),
		MaxAutoRetries:    intPtr(2),
	}

	policy := MergePolicy(account, profile)
	if policy.Force3DSChallenge {
		t.Fatal("profile override should win over account default")
	}
	if !policy.IsAutoRetriesEnabled {
		t.Fatal("account default should apply when profile is silent")
	}
	if policy.MaxAutoRetries != 2 {
		t.Fatalf("expected max retries 2, got %d", policy.MaxAutoRetries)
	}
}

func TestMergePolicySafeDefaults(t *testing.T) {
	policy := MergePolicy(nil, nil)
	if policy.Force3DSChallenge {
		t.Fatal("3ds must not be forced by default")
	}
	if policy.IsAutoRetriesEnabled {
		t.Fatal("retries must be off by default")
	}
}

func TestResolveUnknownProfile(t *testing.T) {
	repo := &stubRepo{account: &models.MerchantAccount{ID: uuid.New()}}
	svc, _ := NewService(ServiceParams{Repo: repo})

	_, err := svc.Resolve(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuthenticateAPIKey(t *testing.T) {
	key := "sk_test_123"
	repo := &stubRepo{account: &models.MerchantAccount{ID: uuid.New(), APIKeyHash: HashAPIKey(key)}}
	svc, _ := NewService(ServiceParams{Repo: repo})

	account, err := svc.AuthenticateAPIKey(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID != repo.account.ID {
		t.Fatal("expected matching account")
	}

	if _, err := svc.AuthenticateAPIKey(context.Background(), "wrong"); err == nil {
		t.Fatal("expected error for wrong key")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpsertValidatesAuthenticationDetails(t *testing.T) {
	repo := &stubRepo{account: &models.MerchantAccount{ID: uuid.New()}}
	svc, _ := NewService(ServiceParams{Repo: repo})

	_, err := svc.Upsert(context.Background(), uuid.New(), uuid.New(), UpsertProfileInput{
		Name:                  "default",
		AuthenticationDetails: &types.AuthenticationConnectorDetails{},
	})
	if err == nil {
		t.Fatal("expected validation error for empty connector list")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertCreatesProfile(t *testing.T) {
	repo := &stubRepo{account: &models.MerchantAccount{ID: uuid.New()}}
	svc, _ := NewService(ServiceParams{Repo: repo})

	profile, err := svc.Upsert(context.Background(), uuid.New(), uuid.New(), UpsertProfileInput{
		Name:              "default",
		Force3DSChallenge: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.created == nil {
		t.Fatal("expected profile creation")
	}
	if profile.Force3DSChallenge == nil || !*profile.Force3DSChallenge {
		t.Fatal("expected force challenge override persisted")
	}
}
