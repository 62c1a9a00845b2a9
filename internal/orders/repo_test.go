package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/pagination"
)

func newOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE orders (
			id text PRIMARY KEY,
			order_number integer NOT NULL,
			customer_id text NOT NULL,
			status text NOT NULL DEFAULT 'pending',
			currency text NOT NULL DEFAULT 'SEK',
			subtotal numeric NOT NULL,
			tax numeric NOT NULL,
			shipping numeric NOT NULL,
			total numeric NOT NULL,
			payment_method text NOT NULL,
			payment_id text NOT NULL,
			shipping_address text,
			billing_address text,
			carrier_code text,
			tracking_number text,
			reservation_id text,
			cart_id text,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE order_line_items (
			id text PRIMARY KEY,
			order_id text NOT NULL,
			product_id text NOT NULL,
			name text NOT NULL,
			qty integer NOT NULL,
			unit_price numeric NOT NULL,
			line_total numeric NOT NULL,
			created_at datetime
		)`,
		`CREATE TABLE shipments (
			id text PRIMARY KEY,
			order_id text NOT NULL UNIQUE,
			tracking_number text NOT NULL,
			carrier_code text NOT NULL,
			status text NOT NULL DEFAULT 'created',
			estimated_delivery datetime NOT NULL,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE stock_movements (
			id text PRIMARY KEY,
			product_id text NOT NULL,
			order_id text,
			qty integer NOT NULL,
			reason text NOT NULL,
			created_at datetime
		)`,
		`CREATE TABLE inventory_items (
			product_id text PRIMARY KEY,
			available_qty integer NOT NULL DEFAULT 0,
			reserved_qty integer NOT NULL DEFAULT 0,
			updated_at datetime
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	order := testOrder(enums.OrderStatusPending)
	order.Items[0].OrderID = order.ID
	order.Items[0].LineTotal = decimal.NewFromFloat(749.97)
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepoFindByIDLoadsItems(t *testing.T) {
	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Trail Jacket", got.Items[0].Name)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepoListByCustomerPages(t *testing.T) {
	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	customerID := uuid.New()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := testOrder(enums.OrderStatusPending)
		order.CustomerID = customerID
		order.OrderNumber = int64(1300 + i)
		order.Items[0].OrderID = order.ID
		order.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.Create(order).Error)
	}

	page, err := repo.ListByCustomer(ctx, customerID, 2, nil)
	require.NoError(t, err)
	// limit+1 rows signal a next page to the caller
	require.Len(t, page, 3)
	assert.Equal(t, int64(1302), page[0].OrderNumber)
	assert.Equal(t, int64(1301), page[1].OrderNumber)
	require.Len(t, page[0].Items, 1)

	cursor := &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}
	rest, err := repo.ListByCustomer(ctx, customerID, 2, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(1300), rest[0].OrderNumber)

	none, err := repo.ListByCustomer(ctx, uuid.New(), 2, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = repo.ListByCustomer(ctx, uuid.Nil, 2, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepoUpdateStatus(t *testing.T) {
	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db)

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, got.Status)

	err = repo.UpdateStatus(ctx, uuid.New(), enums.OrderStatusConfirmed)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepoShipmentLifecycle(t *testing.T) {
	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db)

	missing, err := repo.FindShipmentByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	shipment := &models.Shipment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		TrackingNumber: "PN-TEST-1",
		CarrierCode:    "postnord",
		Status:         enums.ShipmentStatusCreated,
	}
	require.NoError(t, repo.CreateShipment(ctx, shipment))
	require.NoError(t, repo.UpdateShipmentStatus(ctx, order.ID, enums.ShipmentStatusInTransit))

	got, err := repo.FindShipmentByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, enums.ShipmentStatusInTransit, got.Status)
}

func TestRepoReconcileDelivery(t *testing.T) {
	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	productID := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{
		ProductID:    productID,
		AvailableQty: 10,
		ReservedQty:  3,
	}).Error)

	require.NoError(t, repo.ReconcileDelivery(ctx, productID, 3))

	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", productID).Error)
	assert.Equal(t, 7, item.AvailableQty)
	assert.Equal(t, 0, item.ReservedQty)

	// nothing reserved anymore
	err := repo.ReconcileDelivery(ctx, productID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRepoSetTracking(t *testing.T) {
	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db)

	require.NoError(t, repo.SetTracking(ctx, order.ID, "dhl", "DHL-XYZ"))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CarrierCode)
	assert.Equal(t, "dhl", *got.CarrierCode)
	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, "DHL-XYZ", *got.TrackingNumber)
}
