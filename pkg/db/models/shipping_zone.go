package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingZone scales rate prices by destination postal-code prefix range.
type ShippingZone struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Country     string          `gorm:"column:country;not null"`
	Name        string          `gorm:"column:name;not null"`
	PrefixStart int             `gorm:"column:prefix_start;not null"`
	PrefixEnd   int             `gorm:"column:prefix_end;not null"`
	Multiplier  decimal.Decimal `gorm:"column:multiplier;type:numeric(5,2);not null"`
}

// TableName sets the explicit table for ShippingZone.
func (ShippingZone) TableName() string { return "shipping_zones" }
