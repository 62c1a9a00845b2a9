package shipping

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

// Repository exposes the shipping reference data queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRatesByCountry(ctx context.Context, country string) ([]models.ShippingRate, error)
	FindRateByID(ctx context.Context, id uuid.UUID) (*models.ShippingRate, error)
	FreeShippingThreshold(ctx context.Context, country string) (*decimal.Decimal, error)
	FindZones(ctx context.Context, country string) ([]models.ShippingZone, error)
	FindPricingRules(ctx context.Context, carrierCode, serviceType, country string) ([]models.PricingRule, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipping repository backed by the provided DB.
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

func (r *repository) FindRatesByCountry(ctx context.Context, country string) ([]models.ShippingRate, error) {
	var rates []models.ShippingRate
	err := r.db.WithContext(ctx).
		Where("country = ?", country).
		Order("base_price ASC").
		Find(&rates).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping rates")
	}
	return rates, nil
}

func (r *repository) FindRateByID(ctx context.Context, id uuid.UUID) (*models.ShippingRate, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate id is required")
	}
	var rate models.ShippingRate
	err := r.db.WithContext(ctx).First(&rate, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "shipping rate %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rate")
	}
	return &rate, nil
}

func (r *repository) FreeShippingThreshold(ctx context.Context, country string) (*decimal.Decimal, error) {
	var row models.FreeShippingThreshold
	err := r.db.WithContext(ctx).First(&row, "country = ?", country).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load free shipping threshold")
	}
	return &row.Threshold, nil
}

func (r *repository) FindZones(ctx context.Context, country string) ([]models.ShippingZone, error) {
	var zones []models.ShippingZone
	err := r.db.WithContext(ctx).
		Where("country = ?", country).
		Order("prefix_start ASC").
		Find(&zones).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping zones")
	}
	return zones, nil
}

func (r *repository) FindPricingRules(ctx context.Context, carrierCode, serviceType, country string) ([]models.PricingRule, error) {
	var rules []models.PricingRule
	err := r.db.WithContext(ctx).
		Where("carrier_code = ? AND service_type = ? AND country = ?", carrierCode, serviceType, country).
		Order("min_weight_kg ASC").
		Find(&rules).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pricing rules")
	}
	return rules, nil
}
