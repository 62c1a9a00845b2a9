package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/northcart/storefront-backend/internal/inventory"
	"github.com/northcart/storefront-backend/internal/orders"
	"github.com/northcart/storefront-backend/internal/payments"
	"github.com/northcart/storefront-backend/internal/shipping"
	"github.com/northcart/storefront-backend/pkg/config"
	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
	"github.com/northcart/storefront-backend/pkg/outbox"
	"github.com/northcart/storefront-backend/pkg/types"
)

type stubInventory struct {
	unavailable map[uuid.UUID]bool
	checkErr    error
	reservation *models.StockReservation
	reserveErr  error
	reserved    [][]inventory.ReservationLine
	released    []uuid.UUID
	completed   []uuid.UUID
}

func (s *stubInventory) CheckAvailability(_ context.Context, productID uuid.UUID, _ int) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return !s.unavailable[productID], nil
}

func (s *stubInventory) Reserve(_ context.Context, lines []inventory.ReservationLine) (*models.StockReservation, error) {
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	s.reserved = append(s.reserved, lines)
	if s.reservation == nil {
		s.reservation = &models.StockReservation{ID: uuid.New()}
	}
	return s.reservation, nil
}

func (s *stubInventory) Release(_ context.Context, id uuid.UUID) error {
	s.released = append(s.released, id)
	return nil
}

func (s *stubInventory) Complete(_ context.Context, id uuid.UUID) error {
	s.completed = append(s.completed, id)
	return nil
}

type stubQuoter struct {
	quote       *shipping.Quote
	err         error
	lastCountry string
	lastRateID  *uuid.UUID
}

func (s *stubQuoter) CalculateShipping(_ context.Context, _ []shipping.Line, country string) (*shipping.Quote, error) {
	s.lastCountry = country
	s.lastRateID = nil
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func (s *stubQuoter) QuoteRate(_ context.Context, _ []shipping.Line, country string, rateID uuid.UUID) (*shipping.Quote, error) {
	s.lastCountry = country
	s.lastRateID = &rateID
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

type stubGateway struct {
	result     *payments.Result
	processErr error
	requests   []payments.Request
	refunds    []payments.RefundRequest
	refundErr  error
}

func (s *stubGateway) ProcessPayment(_ context.Context, req payments.Request) (*payments.Result, error) {
	s.requests = append(s.requests, req)
	if s.processErr != nil {
		return nil, s.processErr
	}
	return s.result, nil
}

func (s *stubGateway) VerifyPayment(_ context.Context, paymentID string) (*payments.Result, error) {
	return s.result, nil
}

func (s *stubGateway) RefundPayment(_ context.Context, req payments.RefundRequest) (*payments.Result, error) {
	s.refunds = append(s.refunds, req)
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	return &payments.Result{PaymentID: req.PaymentID, Status: payments.StatusRefunded}, nil
}

type stubSelector struct {
	gateway payments.Gateway
}

func (s *stubSelector) Gateway(enums.PaymentMethod) (payments.Gateway, error) {
	return s.gateway, nil
}

type stubCatalog struct {
	products map[uuid.UUID]*models.Product
	queries  [][]uuid.UUID
}

func (s *stubCatalog) FindActiveByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	s.queries = append(s.queries, ids)
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

type stubConfirmer struct {
	confirmed []uuid.UUID
	err       error
}

func (s *stubConfirmer) ConfirmCreatedTx(_ context.Context, _ *gorm.DB, order *models.Order) error {
	if s.err != nil {
		return s.err
	}
	s.confirmed = append(s.confirmed, order.ID)
	order.Status = enums.OrderStatusConfirmed
	trackingNumber := "PN-TEST-123456-42"
	order.TrackingNumber = &trackingNumber
	order.Shipment = &models.Shipment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		TrackingNumber: trackingNumber,
		Status:         enums.ShipmentStatusCreated,
	}
	return nil
}

type stubCarts struct {
	converted []uuid.UUID
	err       error
}

func (s *stubCarts) MarkConverted(_ context.Context, cartID uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.converted = append(s.converted, cartID)
	return nil
}

type stubOrdersRepo struct {
	orders.Repository
	nextNumber int64
	created    []*models.Order
	createErr  error
}

func (s *stubOrdersRepo) WithTx(*gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) NextOrderNumber(context.Context) (int64, error) {
	s.nextNumber++
	return 1200 + s.nextNumber, nil
}

func (s *stubOrdersRepo) Create(_ context.Context, order *models.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, order)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) eventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.EventType)
	}
	return out
}

type checkoutFixture struct {
	service   Service
	inventory *stubInventory
	quoter    *stubQuoter
	gateway   *stubGateway
	catalog   *stubCatalog
	repo      *stubOrdersRepo
	confirmer *stubConfirmer
	carts     *stubCarts
	outbox    *stubOutbox
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		Currency:       "SEK",
		VATRates:       map[string]float64{"SE": 0.25, "DE": 0.19},
		DefaultVATRate: 0.25,
	}
}

func newFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		inventory: &stubInventory{unavailable: map[uuid.UUID]bool{}},
		quoter: &stubQuoter{quote: &shipping.Quote{
			RateID:      uuid.New(),
			CarrierCode: "postnord",
			ServiceName: "Standard",
			Price:       decimal.RequireFromString("50"),
		}},
		gateway: &stubGateway{result: &payments.Result{
			PaymentID: "pay_abc123",
			Status:    payments.StatusAuthorized,
		}},
		catalog:   &stubCatalog{products: map[uuid.UUID]*models.Product{}},
		repo:      &stubOrdersRepo{},
		confirmer: &stubConfirmer{},
		carts:     &stubCarts{},
		outbox:    &stubOutbox{},
	}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		f.repo,
		f.confirmer,
		f.inventory,
		f.quoter,
		f.catalog,
		f.carts,
		&stubSelector{gateway: f.gateway},
		stubTxRunner{},
		f.outbox,
		nil,
		testCheckoutConfig(),
		logg,
	)
	require.NoError(t, err)
	f.service = svc
	return f
}

func swedishAddress() types.Address {
	return types.Address{
		Name:       "Maja Lind",
		Line1:      "Sveavagen 10",
		City:       "Stockholm",
		PostalCode: "11157",
		Country:    "SE",
	}
}

func (f *checkoutFixture) input(t *testing.T) CreateOrderInput {
	t.Helper()
	jacketID := uuid.New()
	bottleID := uuid.New()
	f.catalog.products[jacketID] = &models.Product{ID: jacketID, Name: "Trail Jacket"}
	f.catalog.products[bottleID] = &models.Product{ID: bottleID, Name: "Steel Bottle"}
	return CreateOrderInput{
		CustomerID: uuid.New(),
		Lines: []CartLine{
			{ProductID: jacketID, Qty: 2, UnitPrice: decimal.RequireFromString("299.99")},
			{ProductID: bottleID, Qty: 1, UnitPrice: decimal.RequireFromString("149.99")},
		},
		ShippingAddress: swedishAddress(),
		BillingAddress:  swedishAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
		PaymentToken:    "cnon:card-ok",
	}
}

func TestCreateOrderSwedenTotals(t *testing.T) {
	f := newFixture(t)
	input := f.input(t)

	order, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "749.97", order.Subtotal.StringFixed(2))
	assert.Equal(t, "187.49", order.Tax.StringFixed(2))
	assert.Equal(t, "50.00", order.Shipping.StringFixed(2))
	assert.Equal(t, "987.46", order.Total.StringFixed(2))
	assert.True(t, order.Total.Equal(order.Subtotal.Add(order.Tax).Add(order.Shipping)))

	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Equal(t, int64(1201), order.OrderNumber)
	assert.Equal(t, "pay_abc123", order.PaymentID)
	assert.Equal(t, enums.CurrencySEK, order.Currency)
	require.NotNil(t, order.ReservationID)

	// immediate authorization confirms in the same transaction
	assert.Equal(t, []uuid.UUID{order.ID}, f.confirmer.confirmed)
	require.NotNil(t, order.Shipment)
	require.NotNil(t, order.TrackingNumber)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "Trail Jacket", order.Items[0].Name)
	assert.Equal(t, "599.98", order.Items[0].LineTotal.StringFixed(2))

	require.Len(t, f.repo.created, 1)
	assert.Equal(t, []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventNotificationRequested,
	}, f.outbox.eventTypes())
	assert.Equal(t, []uuid.UUID{*order.ReservationID}, f.inventory.completed)
	assert.Empty(t, f.inventory.released)
	assert.Empty(t, f.gateway.refunds)
}

func TestCreateOrderFreeShipping(t *testing.T) {
	f := newFixture(t)
	f.quoter.quote.Price = decimal.Zero
	f.quoter.quote.FreeShipping = true
	f.quoter.quote.ServiceName = "Standard (free shipping)"
	input := f.input(t)

	order, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "0.00", order.Shipping.StringFixed(2))
	assert.Equal(t, "937.46", order.Total.StringFixed(2))
}

func TestCreateOrderPendingPayment(t *testing.T) {
	f := newFixture(t)
	f.gateway.result = &payments.Result{
		PaymentID:   "swish_req_1",
		Status:      payments.StatusPending,
		RedirectURL: "swish://paymentrequest?token=t1",
	}
	input := f.input(t)
	input.PaymentMethod = enums.PaymentMethodSwish
	input.PaymentToken = "46701234567"

	order, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, "swish_req_1", order.PaymentID)

	// confirmation waits for the payment callback
	assert.Empty(t, f.confirmer.confirmed)
	assert.Nil(t, order.Shipment)
}

func TestCreateOrderConvertsCart(t *testing.T) {
	f := newFixture(t)
	input := f.input(t)
	cartID := uuid.New()
	input.CartID = &cartID

	order, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	require.NotNil(t, order.CartID)
	assert.Equal(t, []uuid.UUID{cartID}, f.carts.converted)

	// a cartless checkout leaves the cart repository alone
	f2 := newFixture(t)
	_, err = f2.service.CreateOrder(context.Background(), f2.input(t))
	require.NoError(t, err)
	assert.Empty(t, f2.carts.converted)
}

func TestCreateOrderBatchesCatalogLookup(t *testing.T) {
	f := newFixture(t)
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, f.catalog.queries, 1)
	assert.ElementsMatch(t, []uuid.UUID{
		input.Lines[0].ProductID,
		input.Lines[1].ProductID,
	}, f.catalog.queries[0])
}

func TestCreateOrderChosenRate(t *testing.T) {
	f := newFixture(t)
	input := f.input(t)
	rateID := uuid.New()
	input.ShippingRateID = &rateID

	_, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	require.NotNil(t, f.quoter.lastRateID)
	assert.Equal(t, rateID, *f.quoter.lastRateID)
	assert.Equal(t, "SE", f.quoter.lastCountry)
}

func TestCreateOrderUnavailableProduct(t *testing.T) {
	f := newFixture(t)
	input := f.input(t)
	f.inventory.unavailable[input.Lines[1].ProductID] = true

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, input.Lines[1].ProductID.String()+" not available", typed.Message())
	assert.Empty(t, f.inventory.reserved)
	assert.Empty(t, f.gateway.requests)
	assert.Empty(t, f.repo.created)
}

func TestCreateOrderShippingFailure(t *testing.T) {
	f := newFixture(t)
	f.quoter.err = pkgerrors.New(pkgerrors.CodeNotFound, "no shipping rates cover this cart")
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, "Shipping calculation failed: no shipping rates cover this cart", typed.Message())
	assert.Empty(t, f.gateway.requests)
	assert.Empty(t, f.inventory.reserved)
}

func TestCreateOrderPaymentFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.processErr = pkgerrors.New(pkgerrors.CodeDependency, "card declined")
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "Payment processing failed: card declined", typed.Message())
	assert.Empty(t, f.inventory.reserved)
	assert.Empty(t, f.inventory.released)
	assert.Empty(t, f.repo.created)
}

func TestCreateOrderDeclinedPayment(t *testing.T) {
	f := newFixture(t)
	f.gateway.result = &payments.Result{PaymentID: "pay_declined", Status: payments.StatusFailed}
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Contains(t, typed.Message(), "Payment processing failed:")
	assert.Empty(t, f.inventory.reserved)
}

func TestCreateOrderReservationFailureRefunds(t *testing.T) {
	f := newFixture(t)
	productID := uuid.New()
	f.inventory.reserveErr = pkgerrors.Newf(pkgerrors.CodeConflict, "insufficient stock for product %s", productID)
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "Stock reservation failed: insufficient stock for product "+productID.String(), typed.Message())

	require.Len(t, f.gateway.refunds, 1)
	refund := f.gateway.refunds[0]
	assert.Equal(t, "pay_abc123", refund.PaymentID)
	assert.Equal(t, "987.46", refund.Amount.StringFixed(2))
	assert.Equal(t, "stock reservation failed", refund.Reason)
	assert.Empty(t, f.repo.created)
	assert.Empty(t, f.outbox.events)
}

func TestCreateOrderMissingProductReleases(t *testing.T) {
	f := newFixture(t)
	input := f.input(t)
	missing := input.Lines[0].ProductID
	delete(f.catalog.products, missing)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, "Product with ID "+missing.String()+" not found", typed.Message())

	require.NotNil(t, f.inventory.reservation)
	assert.Equal(t, []uuid.UUID{f.inventory.reservation.ID}, f.inventory.released)
	assert.Empty(t, f.inventory.completed)
	assert.Empty(t, f.repo.created)
	assert.Empty(t, f.gateway.refunds)
}

func TestCreateOrderConfirmFailureReleases(t *testing.T) {
	f := newFixture(t)
	f.confirmer.err = pkgerrors.New(pkgerrors.CodeInternal, "generate tracking number: entropy source unavailable")
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	require.NotNil(t, f.inventory.reservation)
	assert.Equal(t, []uuid.UUID{f.inventory.reservation.ID}, f.inventory.released)
	assert.Empty(t, f.inventory.completed)
	assert.Empty(t, f.carts.converted)
}

func TestCreateOrderPersistenceFailureReleases(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = pkgerrors.New(pkgerrors.CodeDependency, "insert order: connection reset")
	input := f.input(t)

	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "Failed to create order: insert order: connection reset", typed.Message())

	require.NotNil(t, f.inventory.reservation)
	assert.Equal(t, []uuid.UUID{f.inventory.reservation.ID}, f.inventory.released)
	assert.Empty(t, f.inventory.completed)
	assert.Empty(t, f.gateway.refunds)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	base := f.input(t)

	tests := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{"missing customer", func(in *CreateOrderInput) { in.CustomerID = uuid.Nil }},
		{"no lines", func(in *CreateOrderInput) { in.Lines = nil }},
		{"zero quantity", func(in *CreateOrderInput) { in.Lines[0].Qty = 0 }},
		{"negative price", func(in *CreateOrderInput) { in.Lines[0].UnitPrice = decimal.RequireFromString("-1") }},
		{"bad method", func(in *CreateOrderInput) { in.PaymentMethod = enums.PaymentMethod("giftcard") }},
		{"no shipping address", func(in *CreateOrderInput) { in.ShippingAddress = types.Address{} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := base
			input.Lines = append([]CartLine(nil), base.Lines...)
			tc.mutate(&input)
			_, err := f.service.CreateOrder(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
	assert.Empty(t, f.repo.created)
}
