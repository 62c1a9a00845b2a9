package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/pkg/enums"
	"github.com/northcart/storefront-backend/pkg/types"
)

// Order is created exactly once per successful checkout and afterwards
// mutated only through status transitions. Total = Subtotal + Tax + Shipping
// is enforced at creation.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64               `gorm:"column:order_number;not null"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null;default:'SEK'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping        decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentID       string              `gorm:"column:payment_id;not null"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  types.Address       `gorm:"column:billing_address;type:jsonb;serializer:json"`
	CarrierCode     *string             `gorm:"column:carrier_code"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	ReservationID   *uuid.UUID          `gorm:"column:reservation_id;type:uuid"`
	CartID          *uuid.UUID          `gorm:"column:cart_id;type:uuid"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the explicit table for Order.
func (Order) TableName() string { return "orders" }
