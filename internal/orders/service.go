package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/internal/shipping/tracking"
	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
	"github.com/northcart/storefront-backend/pkg/outbox"
	"github.com/northcart/storefront-backend/pkg/outbox/payloads"
	"github.com/northcart/storefront-backend/pkg/pagination"
)

const (
	defaultCarrier      = "postnord"
	defaultDeliveryDays = 4
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// reservationReleaser returns the held stock when an order is cancelled. The
// release must also unwind completed reservations: checkout completes the
// hold at commit time, and cancelling before delivery gives the units back.
type reservationReleaser interface {
	ReleaseCompletedTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

// Service drives the order lifecycle. Every transition and its side effects
// commit in one transaction.
type Service interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ConfirmCreatedTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory reservationReleaser
	logg      *logger.Logger

	generateTracking func(carrierCode string) (string, error)
	now              func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, inventory reservationReleaser, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("reservation releaser required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:             repo,
		tx:               tx,
		outbox:           outboxSvc,
		inventory:        inventory,
		logg:             logg,
		generateTracking: tracking.Generate,
		now:              time.Now,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// ListOrders pages a customer's order history newest first. The returned
// cursor is empty when there is no further page.
func (s *service) ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByCustomer(ctx, customerID, limit, cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.UpdateStatus(ctx, id, enums.OrderStatusCancelled)
}

// ConfirmCreatedTx applies the confirm transition to an order inserted
// earlier in the caller's transaction. Checkout uses it when the payment
// authorizes immediately, so the shipment and its tracking number exist by
// the time the order commits.
func (s *service) ConfirmCreatedTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order confirmation")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if err := Transition(order.Status, enums.OrderStatusConfirmed); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed); err != nil {
		return err
	}
	from := order.Status
	order.Status = enums.OrderStatusConfirmed
	if err := s.onConfirmed(ctx, tx, repo, order); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			FromStatus:  from,
			ToStatus:    enums.OrderStatusConfirmed,
			ChangedAt:   s.now().UTC(),
		},
	})
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", target)
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := Transition(order.Status, target); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, order.ID, target); err != nil {
			return err
		}

		from := order.Status
		order.Status = target

		switch target {
		case enums.OrderStatusConfirmed:
			if err := s.onConfirmed(ctx, tx, repo, order); err != nil {
				return err
			}
		case enums.OrderStatusShipped:
			if err := s.onShipped(ctx, tx, repo, order); err != nil {
				return err
			}
		case enums.OrderStatusDelivered:
			if err := s.onDelivered(ctx, tx, repo, order); err != nil {
				return err
			}
		case enums.OrderStatusCancelled:
			if err := s.onCancelled(ctx, tx, order); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				FromStatus:  from,
				ToStatus:    target,
				ChangedAt:   s.now().UTC(),
			},
		}); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": id.String(),
		"status":   target,
	})
	s.logg.Info(logCtx, "order status updated")
	return updated, nil
}

// onConfirmed cuts the shipment unless a prior confirm already did.
func (s *service) onConfirmed(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	existing, err := repo.FindShipmentByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		carrier := defaultCarrier
		if order.CarrierCode != nil && *order.CarrierCode != "" {
			carrier = *order.CarrierCode
		}
		trackingNumber, err := s.generateTracking(carrier)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate tracking number")
		}

		shipment := &models.Shipment{
			ID:                uuid.New(),
			OrderID:           order.ID,
			TrackingNumber:    trackingNumber,
			CarrierCode:       carrier,
			Status:            enums.ShipmentStatusCreated,
			EstimatedDelivery: s.now().UTC().AddDate(0, 0, defaultDeliveryDays),
		}
		if err := repo.CreateShipment(ctx, shipment); err != nil {
			return err
		}
		if err := repo.SetTracking(ctx, order.ID, carrier, trackingNumber); err != nil {
			return err
		}
		order.CarrierCode = &carrier
		order.TrackingNumber = &trackingNumber
		order.Shipment = shipment

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentCreated,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Version:       1,
			Data: payloads.ShipmentCreatedEvent{
				ShipmentID:        shipment.ID,
				OrderID:           order.ID,
				CarrierCode:       shipment.CarrierCode,
				TrackingNumber:    shipment.TrackingNumber,
				EstimatedDelivery: shipment.EstimatedDelivery,
			},
		}); err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderConfirmedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			CarrierCode: order.CarrierCode,
		},
	})
}

func (s *service) onShipped(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	if err := repo.UpdateShipmentStatus(ctx, order.ID, enums.ShipmentStatusInTransit); err != nil {
		return err
	}

	carrier := ""
	if order.CarrierCode != nil {
		carrier = *order.CarrierCode
	}
	trackingNumber := ""
	if order.TrackingNumber != nil {
		trackingNumber = *order.TrackingNumber
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderShipped,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderShippedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			CustomerID:     order.CustomerID,
			CarrierCode:    carrier,
			TrackingNumber: trackingNumber,
		},
	})
}

// onDelivered reconciles the hold: one negative stock movement per line and
// the matching inventory decrement.
func (s *service) onDelivered(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	if err := repo.UpdateShipmentStatus(ctx, order.ID, enums.ShipmentStatusDelivered); err != nil {
		return err
	}

	orderID := order.ID
	for _, item := range order.Items {
		if err := repo.ReconcileDelivery(ctx, item.ProductID, item.Qty); err != nil {
			return err
		}
		if err := repo.CreateStockMovement(ctx, &models.StockMovement{
			ID:        uuid.New(),
			ProductID: item.ProductID,
			OrderID:   &orderID,
			Qty:       -item.Qty,
			Reason:    "delivery",
		}); err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderDelivered,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderDeliveredEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			DeliveredAt: s.now().UTC(),
		},
	})
}

func (s *service) onCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.ReservationID != nil {
		released, err := s.inventory.ReleaseCompletedTx(ctx, tx, *order.ReservationID)
		if err != nil {
			return err
		}
		if !released {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":       order.ID.String(),
				"reservation_id": order.ReservationID.String(),
			})
			s.logg.Warn(logCtx, "reservation already released before cancel")
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderCancelledEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			ReservationID: order.ReservationID,
			CancelledAt:   s.now().UTC(),
		},
	})
}
