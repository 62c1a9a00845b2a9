package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcart/storefront-backend/pkg/enums"
)

// CartRecord is the cart a checkout converts into an order.
type CartRecord struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	Status     enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Items      []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the explicit table for CartRecord.
func (CartRecord) TableName() string { return "carts" }
