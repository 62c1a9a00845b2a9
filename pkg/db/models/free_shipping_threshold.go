package models

import "github.com/shopspring/decimal"

// FreeShippingThreshold overrides shipping price to zero for carts at or
// above the per-country subtotal.
type FreeShippingThreshold struct {
	Country   string          `gorm:"column:country;primaryKey"`
	Threshold decimal.Decimal `gorm:"column:threshold;type:numeric(12,2);not null"`
}

// TableName sets the explicit table for FreeShippingThreshold.
func (FreeShippingThreshold) TableName() string { return "free_shipping_thresholds" }
