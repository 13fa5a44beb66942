package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

type stubRepo struct {
	active       []models.ConnectorConfig
	bumpResults  []bool
	bumpCalls    int
	deactivated  int
	created      []*models.ConnectorConfig
	versionFound bool
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ConnectorConfig, error) {
	return nil, nil
}
func (s *stubRepo) FindActive(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) ([]models.ConnectorConfig, error) {
	return s.active, nil
}
func (s *stubRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.ConnectorConfig, error) {
	return nil, nil
}
func (s *stubRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.ConnectorConfig, error) {
	return nil, nil
}
func (s *stubRepo) Create(ctx context.Context, config *models.ConnectorConfig) error {
	s.created = append(s.created, config)
	return nil
}
func (s *stubRepo) Update(ctx context.Context, config *models.ConnectorConfig) error { return nil }
func (s *stubRepo) DeactivateActive(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) error {
	s.deactivated++
	return nil
}
func (s *stubRepo) ProfileVersion(ctx context.Context, profileID uuid.UUID) (int, bool, error) {
	return s.bumpCalls, s.versionFound, nil
}
func (s *stubRepo) BumpProfileVersion(ctx context.Context, profileID uuid.UUID, expected int) (bool, error) {
	result := false
	if s.bumpCalls < len(s.bumpResults) {
		result = s.bumpResults[s.bumpCalls]
	}
	s.bumpCalls++
	return result, nil
}

type inlineTxRunner struct{}

func (inlineTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, repo Repository, tx txRunner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     tx,
		Logger: logger.New(logger.Options{ServiceName: "registry-test"}),
	})
	require.NoError(t, err)
	return svc
}

func activateInput() ActivateInput {
	return ActivateInput{
		MerchantAccountID: uuid.New(),
		ConnectorName:     "threedsecureio",
		ConnectorType:     enums.ConnectorTypeAuthenticationProcessor,
		AuthType:          enums.ConnectorAuthTypeHeaderKey,
		CredentialRef:     "env:THREEDS_KEY",
	}
}

func TestResolveNoneConfigured(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, inlineTxRunner{})

	_, err := svc.Resolve(context.Background(), uuid.New(), enums.ConnectorTypeAuthenticationProcessor)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConnectorNotConfigured, pkgerrors.As(err).Code())
}

func TestResolveAmbiguousAuthentication(t *testing.T) {
	repo := &stubRepo{active: []models.ConnectorConfig{
		{ConnectorName: "threedsecureio"},
		{ConnectorName: "netcetera"},
	}}
	svc := newTestService(t, repo, inlineTxRunner{})

	_, err := svc.Resolve(context.Background(), uuid.New(), enums.ConnectorTypeAuthenticationProcessor)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeAmbiguousConnector, pkgerrors.As(err).Code())
}

func TestActivateRetriesAfterLostCAS(t *testing.T) {
	repo := &stubRepo{versionFound: true, bumpResults: []bool{false, true}}
	svc := newTestService(t, repo, inlineTxRunner{})

	config, err := svc.Activate(context.Background(), uuid.New(), activateInput())
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, 2, repo.bumpCalls)
	assert.Equal(t, 1, repo.deactivated)
	assert.Equal(t, enums.ConnectorStatusActive, config.Status)
}

func TestActivateGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &stubRepo{versionFound: true, bumpResults: []bool{false, false, false}}
	svc := newTestService(t, repo, inlineTxRunner{})

	_, err := svc.Activate(context.Background(), uuid.New(), activateInput())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestActivateValidatesInput(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, inlineTxRunner{})

	input := activateInput()
	input.CredentialRef = ""
	_, err := svc.Activate(context.Background(), uuid.New(), input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

// Repeated activations against the real schema must always leave exactly one
// active authentication connector.
func TestActivateKeepsSingleActiveConnector(t *testing.T) {
	db := setupRegistryTestDB(t)
	repo := NewRepository(db)
	profile := seedProfile(t, db)
	svc := newTestService(t, repo, sqliteTxRunner{db: db})

	names := []string{"threedsecureio", "netcetera", "juspaythreedsserver"}
	for _, name := range names {
		input := activateInput()
		input.ConnectorName = name
		_, err := svc.Activate(context.Background(), profile.ID, input)
		require.NoError(t, err)

		active, err := repo.FindActive(context.Background(), profile.ID, enums.ConnectorTypeAuthenticationProcessor)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, name, active[0].ConnectorName)
	}

	version, found, err := repo.ProfileVersion(context.Background(), profile.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, len(names), version)
}
