package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

func newCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE carts (
			id text PRIMARY KEY,
			customer_id text NOT NULL,
			status text NOT NULL DEFAULT 'active',
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE cart_items (
			id text PRIMARY KEY,
			cart_id text NOT NULL,
			product_id text NOT NULL,
			qty integer NOT NULL,
			unit_price numeric NOT NULL,
			created_at datetime,
			updated_at datetime
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedCart(t *testing.T, db *gorm.DB, customerID uuid.UUID, status enums.CartStatus) *models.CartRecord {
	t.Helper()
	record := &models.CartRecord{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     status,
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: uuid.New(), Qty: 2, UnitPrice: decimal.RequireFromString("299.99")},
			{ID: uuid.New(), ProductID: uuid.New(), Qty: 1, UnitPrice: decimal.RequireFromString("149.99")},
		},
	}
	require.NoError(t, db.Create(record).Error)
	return record
}

func TestFindActiveByCustomer(t *testing.T) {
	db := newCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	seedCart(t, db, customerID, enums.CartStatusConverted)
	active := seedCart(t, db, customerID, enums.CartStatusActive)

	got, err := repo.FindActiveByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
	assert.Equal(t, enums.CartStatusActive, got.Status)
	assert.Len(t, got.Items, 2)
}

func TestFindActiveByCustomerNotFound(t *testing.T) {
	db := newCartTestDB(t)
	repo := NewRepository(db)

	customerID := uuid.New()
	seedCart(t, db, customerID, enums.CartStatusAbandoned)

	_, err := repo.FindActiveByCustomer(context.Background(), customerID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMarkConverted(t *testing.T) {
	db := newCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	record := seedCart(t, db, customerID, enums.CartStatusActive)

	require.NoError(t, repo.MarkConverted(ctx, record.ID))

	var stored models.CartRecord
	require.NoError(t, db.First(&stored, "id = ?", record.ID).Error)
	assert.Equal(t, enums.CartStatusConverted, stored.Status)

	_, err := repo.FindActiveByCustomer(ctx, customerID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	// converting again is a no-op
	require.NoError(t, repo.MarkConverted(ctx, record.ID))
}

func TestMarkAbandoned(t *testing.T) {
	db := newCartTestDB(t)
	repo := NewRepository(db)

	record := seedCart(t, db, uuid.New(), enums.CartStatusActive)
	require.NoError(t, repo.MarkAbandoned(context.Background(), record.ID))

	var stored models.CartRecord
	require.NoError(t, db.First(&stored, "id = ?", record.ID).Error)
	assert.Equal(t, enums.CartStatusAbandoned, stored.Status)
}

func TestCartValidation(t *testing.T) {
	db := newCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.FindActiveByCustomer(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = repo.MarkConverted(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
