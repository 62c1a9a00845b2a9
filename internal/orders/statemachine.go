package orders

import (
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

// allowedTransitions is the order lifecycle. Cancellation is only reachable
// before the parcel leaves the warehouse.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {},
	enums.OrderStatusCancelled:  {},
}

// Transition validates a status change against the lifecycle table.
func Transition(current, target enums.OrderStatus) error {
	if !target.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", target)
	}
	if current == target {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", current)
	}
	if target == enums.OrderStatusCancelled {
		switch current {
		case enums.OrderStatusShipped, enums.OrderStatusDelivered:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot be cancelled after shipping")
		}
	}
	for _, allowed := range allowedTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot move from %s to %s", current, target)
}

// Cancellable reports whether an order in the given status may still be
// cancelled.
func Cancellable(status enums.OrderStatus) bool {
	return Transition(status, enums.OrderStatusCancelled) == nil
}
