package models

import (
	"time"

	"github.com/google/uuid"
)

// StockMovement records physical on-hand changes. Delivery reconciliation
// writes a negative Qty once the reserved quantity actually left the shelf.
type StockMovement struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`
	Qty       int        `gorm:"column:qty;not null"`
	Reason    string     `gorm:"column:reason;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName sets the explicit table for StockMovement.
func (StockMovement) TableName() string { return "stock_movements" }
