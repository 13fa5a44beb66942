package mandates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	"github.com/velopay/payswitch-backend/pkg/enums"
)

// Repository handles mandate persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, mandate *models.Mandate) error
	Update(ctx context.Context, mandate *models.Mandate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Mandate, error)
	ListByMerchant(ctx context.Context, accountID uuid.UUID, params ListQuery) ([]models.Mandate, error)
	ListByCustomer(ctx context.Context, accountID uuid.UUID, customerID string) ([]models.Mandate, error)
}

// ListQuery constrains merchant-scoped mandate listings.
type ListQuery struct {
	Status      *enums.MandateStatus
	MandateType *enums.MandateType
	Limit       int
	Offset      int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a mandate repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, mandate *models.Mandate) error {
	return r.db.WithContext(ctx).Create(mandate).Error
}

func (r *repository) Update(ctx context.Context, mandate *models.Mandate) error {
	return r.db.WithContext(ctx).Save(mandate).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Mandate, error) {
	var mandate models.Mandate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&mandate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &mandate, nil
}

func (r *repository) ListByMerchant(ctx context.Context, accountID uuid.UUID, params ListQuery) ([]models.Mandate, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Mandate{}).
		Where("merchant_account_id = ?", accountID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.MandateType != nil {
		query = query.Where("mandate_type = ?", *params.MandateType)
	}
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []models.Mandate
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(params.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByCustomer(ctx context.Context, accountID uuid.UUID, customerID string) ([]models.Mandate, error) {
	var rows []models.Mandate
	err := r.db.WithContext(ctx).
		Where("merchant_account_id = ? AND customer_id = ?", accountID, customerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
