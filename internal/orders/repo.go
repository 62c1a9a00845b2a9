package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/pagination"
)

// Repository persists orders and their fulfillment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextOrderNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	SetTracking(ctx context.Context, id uuid.UUID, carrierCode, trackingNumber string) error
	FindShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	UpdateShipmentStatus(ctx context.Context, orderID uuid.UUID, status enums.ShipmentStatus) error
	ReconcileDelivery(ctx context.Context, productID uuid.UUID, qty int) error
	CreateStockMovement(ctx context.Context, movement *models.StockMovement) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NextOrderNumber pulls the next customer-facing number from the DB sequence.
func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.db.WithContext(ctx).
		Raw("SELECT nextval('order_number_seq')").
		Scan(&number).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}
	return number, nil
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findByID(ctx, id, false)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findByID(ctx, id, true)
}

func (r *repository) findByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	query := r.db.WithContext(ctx).Preload("Items").Preload("Shipment")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "orders"}})
	}
	var order models.Order
	err := query.First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

// ListByCustomer pages a customer's orders newest first. The caller passes the
// cursor of the previous page's last row, or nil for the first page.
func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update order status")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	return nil
}

func (r *repository) SetTracking(ctx context.Context, id uuid.UUID, carrierCode, trackingNumber string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"carrier_code":    carrierCode,
			"tracking_number": trackingNumber,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "set order tracking")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	return nil
}

func (r *repository) FindShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).First(&shipment, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return &shipment, nil
}

func (r *repository) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	if shipment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment is required")
	}
	if err := r.db.WithContext(ctx).Create(shipment).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert shipment")
	}
	return nil
}

func (r *repository) UpdateShipmentStatus(ctx context.Context, orderID uuid.UUID, status enums.ShipmentStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment status")
	}
	return nil
}

// ReconcileDelivery converts a delivered hold into a physical decrement:
// both available and reserved shrink by the shipped quantity.
func (r *repository) ReconcileDelivery(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery quantity must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND reserved_qty >= ? AND available_qty >= ?", productID, qty, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", qty),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "reconcile delivered stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "no reserved stock to deliver for product %s", productID)
	}
	return nil
}

func (r *repository) CreateStockMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock movement is required")
	}
	if err := r.db.WithContext(ctx).Create(movement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
	}
	return nil
}
