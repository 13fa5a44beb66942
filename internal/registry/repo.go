package registry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
)

// Repository handles connector configuration persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.ConnectorConfig, error)
	FindActive(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) ([]models.ConnectorConfig, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.ConnectorConfig, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.ConnectorConfig, error)
	Create(ctx context.Context, config *models.ConnectorConfig) error
	Update(ctx context.Context, config *models.ConnectorConfig) error
	DeactivateActive(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) error
	ProfileVersion(ctx context.Context, profileID uuid.UUID) (int, bool, error)
	BumpProfileVersion(ctx context.Context, profileID uuid.UUID, expected int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a connector repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ConnectorConfig, error) {
	var config models.ConnectorConfig
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&config).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *repository) FindActive(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) ([]models.ConnectorConfig, error) {
	var rows []models.ConnectorConfig
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND connector_type = ? AND status = ? AND disabled = ?",
			profileID, connectorType, enums.ConnectorStatusActive, false).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.ConnectorConfig, error) {
	var rows []models.ConnectorConfig
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.ConnectorConfig, error) {
	var rows []models.ConnectorConfig
	err := r.db.WithContext(ctx).
		Where("merchant_account_id = ?", accountID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, config *models.ConnectorConfig) error {
	return r.db.WithContext(ctx).Create(config).Error
}

func (r *repository) Update(ctx context.Context, config *models.ConnectorConfig) error {
	return r.db.WithContext(ctx).Save(config).Error
}

func (r *repository) DeactivateActive(ctx context.Context, profileID uuid.UUID, connectorType enums.ConnectorType) error {
	return r.db.WithContext(ctx).
		Model(&models.ConnectorConfig{}).
		Where("profile_id = ? AND connector_type = ? AND status = ?",
			profileID, connectorType, enums.ConnectorStatusActive).
		Update("status", enums.ConnectorStatusInactive).Error
}

func (r *repository) ProfileVersion(ctx context.Context, profileID uuid.UUID) (int, bool, error) {
	var profile models.BusinessProfile
	err := r.db.WithContext(ctx).
		Select("id", "connector_version").
		Where("id = ?", profileID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return profile.ConnectorVersion, true, nil
}

// BumpProfileVersion performs the activation compare-and-swap. A false return
// means another activation won the race and the caller must re-read and retry.
func (r *repository) BumpProfileVersion(ctx context.Context, profileID uuid.UUID, expected int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BusinessProfile{}).
		Where("id = ? AND connector_version = ?", profileID, expected).
		Update("connector_version", expected+1)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
