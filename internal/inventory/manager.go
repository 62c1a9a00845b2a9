package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
	"github.com/northcart/storefront-backend/pkg/outbox"
	"github.com/northcart/storefront-backend/pkg/outbox/payloads"
)

const defaultReservationTTL = 30 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ReservationLine is one product/quantity pair of a reservation request.
type ReservationLine struct {
	ProductID uuid.UUID
	Qty       int
}

// Manager guards the reserved_qty <= available_qty invariant under
// concurrent checkouts. All mutations go through conditional updates so two
// racing reservations can never both win the last unit.
type Manager interface {
	Reserve(ctx context.Context, lines []ReservationLine) (*models.StockReservation, error)
	Release(ctx context.Context, id uuid.UUID) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	ReleaseCompletedTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) error
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	CleanupExpired(ctx context.Context) (int, error)
}

type manager struct {
	tx     txRunner
	logg   *logger.Logger
	outbox outboxEmitter
	ttl    time.Duration
}

// NewManager builds the reservation manager.
func NewManager(tx txRunner, logg *logger.Logger, publisher outboxEmitter, ttl time.Duration) (Manager, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}
	return &manager{tx: tx, logg: logg, outbox: publisher, ttl: ttl}, nil
}

// Reserve takes a time-boxed hold on every line or none of them.
func (m *manager) Reserve(ctx context.Context, lines []ReservationLine) (*models.StockReservation, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation lines are required")
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation line product id is required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
	}

	reservation := &models.StockReservation{
		ID:        uuid.New(),
		Status:    enums.ReservationStatusActive,
		ExpiresAt: time.Now().UTC().Add(m.ttl),
	}

	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, line := range lines {
			if err := holdStock(ctx, tx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}
		if err := tx.WithContext(ctx).Create(reservation).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}
		for _, line := range lines {
			row := models.StockReservationLine{
				ID:            uuid.New(),
				ReservationID: reservation.ID,
				ProductID:     line.ProductID,
				Qty:           line.Qty,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation line")
			}
			reservation.Lines = append(reservation.Lines, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := m.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservation.ID.String(),
		"line_count":     len(lines),
		"expires_at":     reservation.ExpiresAt,
	})
	m.logg.Info(logCtx, "stock reserved")
	return reservation, nil
}

// holdStock claims qty units when the free headroom allows it.
func holdStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty - reserved_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "insufficient stock for product %s", productID)
	}
	return nil
}

// Release returns the held quantities to the pool. Releasing a completed or
// already-released reservation is a no-op.
func (m *manager) Release(ctx context.Context, id uuid.UUID) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		released, err := m.ReleaseTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if released && m.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventReservationReleased,
				AggregateType: enums.AggregateReservation,
				AggregateID:   id,
				Version:       1,
				Data: payloads.ReservationReleasedEvent{
					ReservationID: id,
					ReleasedAt:    time.Now().UTC(),
				},
			}
			if err := m.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReleaseTx releases inside the caller's transaction and reports whether the
// reservation actually transitioned out of active.
func (m *manager) ReleaseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation release")
	}

	reservation, err := lockReservation(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if reservation.Status != enums.ReservationStatusActive {
		return false, nil
	}

	for _, line := range reservation.Lines {
		if err := returnStock(ctx, tx, line.ProductID, line.Qty); err != nil {
			return false, err
		}
	}

	res := tx.WithContext(ctx).Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusActive).
		Update("status", enums.ReservationStatusReleased)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release reservation")
	}
	return res.RowsAffected > 0, nil
}

// ReleaseCompletedTx unwinds the reservation behind a cancelled order. A
// completed reservation still holds its units until delivery, so cancellation
// has to give them back to the pool; an active one releases the normal way.
// Anything already released stays untouched.
func (m *manager) ReleaseCompletedTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation release")
	}

	reservation, err := lockReservation(ctx, tx, id)
	if err != nil {
		return false, err
	}
	releasable := []enums.ReservationStatus{
		enums.ReservationStatusActive,
		enums.ReservationStatusCompleted,
	}
	if reservation.Status != enums.ReservationStatusActive &&
		reservation.Status != enums.ReservationStatusCompleted {
		return false, nil
	}

	for _, line := range reservation.Lines {
		if err := returnStock(ctx, tx, line.ProductID, line.Qty); err != nil {
			return false, err
		}
	}

	res := tx.WithContext(ctx).Model(&models.StockReservation{}).
		Where("id = ? AND status IN ?", id, releasable).
		Update("status", enums.ReservationStatusReleased)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release reservation")
	}
	return res.RowsAffected > 0, nil
}

func returnStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "return reserved inventory")
	}
	return nil
}

// Complete converts an active hold into a consumed one. The reserved units
// stay claimed until delivery reconciliation decrements physical stock.
func (m *manager) Complete(ctx context.Context, id uuid.UUID) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusActive {
			return nil
		}
		res := tx.WithContext(ctx).Model(&models.StockReservation{}).
			Where("id = ? AND status = ?", id, enums.ReservationStatusActive).
			Update("status", enums.ReservationStatusCompleted)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "complete reservation")
		}
		return nil
	})
}

// CheckAvailability reports whether qty units of the product are free to reserve.
func (m *manager) CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var available bool
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var item models.InventoryItem
		if err := tx.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				available = false
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}
		available = item.AvailableQty-item.ReservedQty >= qty
		return nil
	})
	if err != nil {
		return false, err
	}
	return available, nil
}

// CleanupExpired releases every active reservation past its deadline and
// returns how many were swept.
func (m *manager) CleanupExpired(ctx context.Context) (int, error) {
	var expired []uuid.UUID
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Model(&models.StockReservation{}).
			Where("status = ? AND expires_at < ?", enums.ReservationStatusActive, time.Now().UTC()).
			Pluck("id", &expired).Error
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired reservations")
	}

	count := 0
	for _, id := range expired {
		sweepErr := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
			released, err := m.ReleaseTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if !released {
				return nil
			}
			count++
			if m.outbox != nil {
				event := outbox.DomainEvent{
					EventType:     enums.EventReservationReleased,
					AggregateType: enums.AggregateReservation,
					AggregateID:   id,
					Version:       1,
					Data: payloads.ReservationReleasedEvent{
						ReservationID: id,
						Expired:       true,
						ReleasedAt:    time.Now().UTC(),
					},
				}
				return m.outbox.Emit(ctx, tx, event)
			}
			return nil
		})
		if sweepErr != nil {
			logCtx := m.logg.WithField(ctx, "reservation_id", id.String())
			m.logg.Error(logCtx, "expired reservation sweep failed", sweepErr)
		}
	}
	return count, nil
}

func lockReservation(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.StockReservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}
	var reservation models.StockReservation
	err := tx.WithContext(ctx).Preload("Lines").First(&reservation, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "reservation %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return &reservation, nil
}
