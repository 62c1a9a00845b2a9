package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

// Repository reads and converts customer carts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
	MarkConverted(ctx context.Context, cartID uuid.UUID) error
	MarkAbandoned(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ? AND status = ?", customerID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no active cart for customer %s", customerID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &record, nil
}

// MarkConverted closes out a cart after its checkout persisted an order.
// Converting an already converted cart is a no-op.
func (r *repository) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	return r.setStatus(ctx, cartID, enums.CartStatusConverted)
}

func (r *repository) MarkAbandoned(ctx context.Context, cartID uuid.UUID) error {
	return r.setStatus(ctx, cartID, enums.CartStatusAbandoned)
}

func (r *repository) setStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	err := r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Update("status", status).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart status")
	}
	return nil
}
