package authentication

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velopay/payswitch-backend/pkg/db/models"
	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

// Repository handles authentication attempt persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.AuthenticationAttempt) error
	Update(ctx context.Context, attempt *models.AuthenticationAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AuthenticationAttempt, error)
	FindLatestByPayment(ctx context.Context, paymentID uuid.UUID) (*models.AuthenticationAttempt, error)
	CountByPayment(ctx context.Context, paymentID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an attempt repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.AuthenticationAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// Update refuses to move an attempt out of a terminal status. Attempt history
// is append-only once settled.
func (r *repository) Update(ctx context.Context, attempt *models.AuthenticationAttempt) error {
	var current models.AuthenticationAttempt
	if err := r.db.WithContext(ctx).
		Select("id", "status").
		Where("id = ?", attempt.ID).
		First(&current).Error; err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			"authentication attempt already settled")
	}
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AuthenticationAttempt, error) {
	var attempt models.AuthenticationAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) FindLatestByPayment(ctx context.Context, paymentID uuid.UUID) (*models.AuthenticationAttempt, error) {
	var attempt models.AuthenticationAttempt
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) CountByPayment(ctx context.Context, paymentID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AuthenticationAttempt{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	return int(count), err
}
