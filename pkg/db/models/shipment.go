package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcart/storefront-backend/pkg/enums"
)

// Shipment is created when an order reaches confirmed and none exists yet.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingNumber    string               `gorm:"column:tracking_number;not null"`
	CarrierCode       string               `gorm:"column:carrier_code;not null"`
	Status            enums.ShipmentStatus `gorm:"column:status;type:shipment_status;not null;default:'created'"`
	EstimatedDelivery time.Time            `gorm:"column:estimated_delivery;not null"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the explicit table for Shipment.
func (Shipment) TableName() string { return "shipments" }
