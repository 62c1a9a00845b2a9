package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingRule is a weight-banded dynamic price (base + per-kg) for a carrier
// service in a country.
type PricingRule struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CarrierCode string          `gorm:"column:carrier_code;not null"`
	ServiceType string          `gorm:"column:service_type;not null"`
	Country     string          `gorm:"column:country;not null"`
	MinWeightKg decimal.Decimal `gorm:"column:min_weight_kg;type:numeric(8,3);not null;default:0"`
	MaxWeightKg decimal.Decimal `gorm:"column:max_weight_kg;type:numeric(8,3);not null"`
	BaseAmount  decimal.Decimal `gorm:"column:base_amount;type:numeric(12,2);not null"`
	PerKgAmount decimal.Decimal `gorm:"column:per_kg_amount;type:numeric(12,2);not null;default:0"`
}

// TableName sets the explicit table for PricingRule.
func (PricingRule) TableName() string { return "pricing_rules" }
