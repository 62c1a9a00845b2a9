package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a checkout that persisted a new order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	CartID        *uuid.UUID          `json:"cart_id,omitempty"`
	ReservationID *uuid.UUID          `json:"reservation_id,omitempty"`
	Total         decimal.Decimal     `json:"total"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentID     string              `json:"payment_id"`
}

// OrderConfirmedEvent is emitted when an order reaches the confirmed status.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CarrierCode *string   `json:"carrier_code,omitempty"`
}

// OrderStatusChangedEvent mirrors every transition in the order state machine.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber int64             `json:"order_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	ToStatus    enums.OrderStatus `json:"to_status"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted whenever a pre-shipment order is cancelled.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	OrderNumber   int64      `json:"order_number"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
	CancelledAt   time.Time  `json:"cancelled_at"`
	Reason        string     `json:"reason,omitempty"`
}

// OrderShippedEvent carries the tracking details once a shipment leaves the warehouse.
type OrderShippedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    int64     `json:"order_number"`
	CustomerID     uuid.UUID `json:"customer_id"`
	CarrierCode    string    `json:"carrier_code"`
	TrackingNumber string    `json:"tracking_number"`
}

// OrderDeliveredEvent closes out the fulfillment lifecycle for an order.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// ReservationReleasedEvent reports stock returned to the available pool.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Expired       bool       `json:"expired"`
	ReleasedAt    time.Time  `json:"released_at"`
}

// ShipmentCreatedEvent is emitted when a shipment record is cut for a confirmed order.
type ShipmentCreatedEvent struct {
	ShipmentID        uuid.UUID `json:"shipment_id"`
	OrderID           uuid.UUID `json:"order_id"`
	CarrierCode       string    `json:"carrier_code"`
	TrackingNumber    string    `json:"tracking_number"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

// NotificationRequestedEvent tells downstream systems to message a customer.
type NotificationRequestedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	Type        string    `json:"type"`
}
