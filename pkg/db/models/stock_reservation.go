package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/northcart/storefront-backend/pkg/enums"
)

// StockReservation is a time-boxed hold on inventory taken during checkout.
// Active reservations past ExpiresAt are stale and get released by the sweep.
type StockReservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status    enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'active'"`
	Lines     []StockReservationLine  `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time               `gorm:"column:expires_at;not null"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// StockReservationLine holds the per-product quantity of a reservation.
type StockReservationLine struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Qty           int       `gorm:"column:qty;not null"`
}

// TableName sets the explicit table for StockReservation.
func (StockReservation) TableName() string { return "stock_reservations" }

// TableName sets the explicit table for StockReservationLine.
func (StockReservationLine) TableName() string { return "stock_reservation_lines" }
