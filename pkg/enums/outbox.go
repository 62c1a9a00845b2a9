package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateReservation  OutboxAggregateType = "reservation"
	AggregateShipment     OutboxAggregateType = "shipment"
	AggregateCart         OutboxAggregateType = "cart"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateReservation,
	AggregateShipment,
	AggregateCart,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderConfirmed        OutboxEventType = "order_confirmed"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventOrderShipped          OutboxEventType = "order_shipped"
	EventOrderDelivered        OutboxEventType = "order_delivered"
	EventReservationReleased   OutboxEventType = "reservation_released"
	EventShipmentCreated       OutboxEventType = "shipment_created"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventOrderShipped,
	EventOrderDelivered,
	EventReservationReleased,
	EventShipmentCreated,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
