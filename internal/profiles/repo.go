package profiles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
)

// Repository handles merchant account and business profile persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccountByID(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error)
	FindAccountByAPIKeyHash(ctx context.Context, hash string) (*models.MerchantAccount, error)
	FindProfile(ctx context.Context, id uuid.UUID) (*models.BusinessProfile, error)
	FindProfileForAccount(ctx context.Context, accountID, profileID uuid.UUID) (*models.BusinessProfile, error)
	CreateProfile(ctx context.Context, profile *models.BusinessProfile) error
	UpdateProfile(ctx context.Context, profile *models.BusinessProfile) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a profile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error) {
	var account models.MerchantAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountByAPIKeyHash(ctx context.Context, hash string) (*models.MerchantAccount, error) {
	if hash == "" {
		return nil, nil
	}
	var account models.MerchantAccount
	if err := r.db.WithContext(ctx).Where("api_key_hash = ?", hash).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindProfile(ctx context.Context, id uuid.UUID) (*models.BusinessProfile, error) {
	var profile models.BusinessProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindProfileForAccount(ctx context.Context, accountID, profileID uuid.UUID) (*models.BusinessProfile, error) {
	var profile models.BusinessProfile
	err := r.db.WithContext(ctx).
		Where("id = ? AND merchant_account_id = ?", profileID, accountID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) CreateProfile(ctx context.Context, profile *models.BusinessProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) UpdateProfile(ctx context.Context, profile *models.BusinessProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
