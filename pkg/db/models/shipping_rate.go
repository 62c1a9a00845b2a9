package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingRate is a carrier service priced for a country and weight band.
type ShippingRate struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CarrierCode   string          `gorm:"column:carrier_code;not null"`
	ServiceName   string          `gorm:"column:service_name;not null"`
	BasePrice     decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	EstimatedDays int             `gorm:"column:estimated_days;not null"`
	Country       string          `gorm:"column:country;not null"`
	MinWeightKg   decimal.Decimal `gorm:"column:min_weight_kg;type:numeric(8,3);not null;default:0"`
	MaxWeightKg   decimal.Decimal `gorm:"column:max_weight_kg;type:numeric(8,3);not null"`
	IsEcoFriendly bool            `gorm:"column:is_eco_friendly;not null;default:false"`
	IsPremium     bool            `gorm:"column:is_premium;not null;default:false"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the explicit table for ShippingRate.
func (ShippingRate) TableName() string { return "shipping_rates" }
