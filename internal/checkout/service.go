package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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
	"github.com/northcart/storefront-backend/pkg/metrics"
	"github.com/northcart/storefront-backend/pkg/outbox"
	"github.com/northcart/storefront-backend/pkg/outbox/payloads"
	"github.com/northcart/storefront-backend/pkg/types"
)

// Saga step names used in logs and metrics labels.
const (
	stepAvailability = "availability"
	stepShipping     = "shipping_quote"
	stepTotals       = "totals"
	stepPayment      = "payment"
	stepReservation  = "reservation"
	stepEnrichment   = "line_enrichment"
	stepPersistence  = "persistence"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type inventoryManager interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Reserve(ctx context.Context, lines []inventory.ReservationLine) (*models.StockReservation, error)
	Release(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) error
}

type rateQuoter interface {
	CalculateShipping(ctx context.Context, lines []shipping.Line, country string) (*shipping.Quote, error)
	QuoteRate(ctx context.Context, lines []shipping.Line, country string, rateID uuid.UUID) (*shipping.Quote, error)
}

type gatewaySelector interface {
	Gateway(method enums.PaymentMethod) (payments.Gateway, error)
}

type productCatalog interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// orderConfirmer runs the confirm transition, shipment creation included,
// inside the order-creation transaction.
type orderConfirmer interface {
	ConfirmCreatedTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type cartConverter interface {
	MarkConverted(ctx context.Context, cartID uuid.UUID) error
}

// CartLine is one cart position at its snapshotted price.
type CartLine struct {
	ProductID uuid.UUID
	Qty       int
	UnitPrice decimal.Decimal
}

// CreateOrderInput is the normalized checkout request.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	CartID          *uuid.UUID
	Lines           []CartLine
	ShippingAddress types.Address
	BillingAddress  types.Address
	PaymentMethod   enums.PaymentMethod
	// PaymentToken is the provider-specific source handle (card nonce,
	// payer alias, customer reference).
	PaymentToken string
	// ShippingRateID pins the quote to a rate the customer already chose.
	// When nil the cheapest viable rate is used.
	ShippingRateID *uuid.UUID
}

// Service turns a validated cart into a durably persisted order.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
}

type service struct {
	ordersRepo orders.Repository
	confirmer  orderConfirmer
	inventory  inventoryManager
	shipping   rateQuoter
	catalog    productCatalog
	carts      cartConverter
	gateways   gatewaySelector
	tx         txRunner
	outbox     outboxPublisher
	metrics    *metrics.CheckoutMetrics
	cfg        config.CheckoutConfig
	logg       *logger.Logger

	now func() time.Time
}

// NewService wires the checkout orchestrator.
func NewService(
	ordersRepo orders.Repository,
	confirmer orderConfirmer,
	inv inventoryManager,
	quoter rateQuoter,
	catalog productCatalog,
	carts cartConverter,
	gateways gatewaySelector,
	tx txRunner,
	publisher outboxPublisher,
	checkoutMetrics *metrics.CheckoutMetrics,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if confirmer == nil {
		return nil, fmt.Errorf("order confirmer required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory manager required")
	}
	if quoter == nil {
		return nil, fmt.Errorf("shipping calculator required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if gateways == nil {
		return nil, fmt.Errorf("payment selector required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ordersRepo: ordersRepo,
		confirmer:  confirmer,
		inventory:  inv,
		shipping:   quoter,
		catalog:    catalog,
		carts:      carts,
		gateways:   gateways,
		tx:         tx,
		outbox:     publisher,
		metrics:    checkoutMetrics,
		cfg:        cfg,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// CreateOrder runs the checkout saga. Steps execute strictly in order; a
// failing step aborts and compensates everything the saga already did. The
// commit point is the order insert: before it everything is abortable, after
// it everything is cleanup.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	country := input.ShippingAddress.CountryCode()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"customer_id":    input.CustomerID.String(),
		"line_count":     len(input.Lines),
		"payment_method": input.PaymentMethod.String(),
		"country":        country,
	})

	// 1. Availability check.
	started := s.now()
	for _, line := range input.Lines {
		available, err := s.inventory.CheckAvailability(ctx, line.ProductID, line.Qty)
		if err != nil {
			s.metrics.IncFailure(stepAvailability)
			return nil, err
		}
		if !available {
			s.metrics.IncFailure(stepAvailability)
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "%s not available", line.ProductID)
		}
	}
	s.metrics.ObserveStep(stepAvailability, s.now().Sub(started))

	// 2. Shipping quote.
	started = s.now()
	quote, err := s.quoteShipping(ctx, input, country)
	if err != nil {
		s.metrics.IncFailure(stepShipping)
		return nil, stepError(pkgerrors.CodeDependency, err, "Shipping calculation failed: %s")
	}
	s.metrics.ObserveStep(stepShipping, s.now().Sub(started))

	// 3. Totals.
	subtotal := decimal.Zero
	for _, line := range input.Lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(s.cfg.VATRateFor(country)).Round(2)
	shippingCost := quote.Price.Round(2)
	total := subtotal.Add(tax).Add(shippingCost)

	// 4. Payment authorization.
	started = s.now()
	gateway, err := s.gateways.Gateway(input.PaymentMethod)
	if err != nil {
		s.metrics.IncFailure(stepPayment)
		return nil, err
	}
	payment, err := gateway.ProcessPayment(ctx, payments.Request{
		Amount:      total,
		Currency:    s.cfg.Currency,
		SourceToken: input.PaymentToken,
		CustomerRef: input.CustomerID.String(),
	})
	if err != nil {
		s.metrics.IncFailure(stepPayment)
		return nil, stepError(pkgerrors.CodeDependency, err, "Payment processing failed: %s")
	}
	if payment.Status == payments.StatusFailed {
		s.metrics.IncFailure(stepPayment)
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "Payment processing failed: provider declined payment %s", payment.PaymentID)
	}
	s.metrics.ObserveStep(stepPayment, s.now().Sub(started))

	// 5. Stock reservation. Payment is already authorized, so a failure
	// here triggers the compensating refund.
	started = s.now()
	reservation, err := s.inventory.Reserve(ctx, reservationLines(input.Lines))
	if err != nil {
		s.metrics.IncFailure(stepReservation)
		s.refundPayment(logCtx, gateway, payment, total)
		return nil, stepError(pkgerrors.CodeConflict, err, "Stock reservation failed: %s")
	}
	s.metrics.ObserveStep(stepReservation, s.now().Sub(started))

	// 6. Line enrichment: snapshot current display names.
	started = s.now()
	items, err := s.enrichLines(ctx, input.Lines)
	if err != nil {
		s.metrics.IncFailure(stepEnrichment)
		s.releaseReservation(logCtx, reservation.ID)
		return nil, err
	}
	s.metrics.ObserveStep(stepEnrichment, s.now().Sub(started))

	// 7. Persist order plus its outbox events in one transaction. Orders
	// insert as pending; an already-authorized payment confirms them in the
	// same transaction so the shipment side effects run at the commit point.
	started = s.now()
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		Status:          enums.OrderStatusPending,
		Currency:        enums.Currency(s.cfg.Currency),
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shippingCost,
		Total:           total,
		PaymentMethod:   input.PaymentMethod,
		PaymentID:       payment.PaymentID,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		CarrierCode:     &quote.CarrierCode,
		ReservationID:   &reservation.ID,
		CartID:          input.CartID,
		Items:           items,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)
		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		if payment.Status == payments.StatusAuthorized {
			if err := s.confirmer.ConfirmCreatedTx(ctx, tx, order); err != nil {
				return err
			}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    order.CustomerID,
				CartID:        order.CartID,
				ReservationID: order.ReservationID,
				Total:         order.Total,
				Currency:      order.Currency,
				PaymentMethod: order.PaymentMethod,
				PaymentID:     order.PaymentID,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.NotificationRequestedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				Type:        "order_confirmation",
			},
		})
	})
	if err != nil {
		s.metrics.IncFailure(stepPersistence)
		s.releaseReservation(logCtx, reservation.ID)
		return nil, stepError(pkgerrors.CodeDependency, err, "Failed to create order: %s")
	}
	s.metrics.ObserveStep(stepPersistence, s.now().Sub(started))

	// 8. Complete the reservation. The order is durable, so failures from
	// here on are logged, never surfaced.
	if err := s.inventory.Complete(ctx, reservation.ID); err != nil {
		s.logg.Error(s.logg.WithField(logCtx, "reservation_id", reservation.ID.String()),
			"reservation completion failed after order commit", err)
	}

	// 9. Close out the originating cart, same best-effort terms.
	if input.CartID != nil {
		if err := s.carts.MarkConverted(ctx, *input.CartID); err != nil {
			s.logg.Error(s.logg.WithField(logCtx, "cart_id", input.CartID.String()),
				"cart conversion failed after order commit", err)
		}
	}

	s.metrics.IncSuccess()
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       order.Status.String(),
		"total":        order.Total.StringFixed(2),
	}), "order created")
	return order, nil
}

func (s *service) quoteShipping(ctx context.Context, input CreateOrderInput, country string) (*shipping.Quote, error) {
	lines := make([]shipping.Line, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, shipping.Line{ProductID: line.ProductID, Qty: line.Qty})
	}
	if input.ShippingRateID != nil {
		return s.shipping.QuoteRate(ctx, lines, country, *input.ShippingRateID)
	}
	return s.shipping.CalculateShipping(ctx, lines, country)
}

// enrichLines resolves the whole cart in one catalog query and snapshots the
// current display names onto the order lines.
func (s *service) enrichLines(ctx context.Context, lines []CartLine) ([]models.OrderLineItem, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	items := make([]models.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Product with ID %s not found", line.ProductID)
		}
		items = append(items, models.OrderLineItem{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			Name:      product.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			LineTotal: line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))).Round(2),
		})
	}
	return items, nil
}

// refundPayment compensates an authorized payment whose checkout could not
// reserve stock. Best effort: a refund failure is logged and left to manual
// reconciliation, never surfaced over the reservation error.
func (s *service) refundPayment(ctx context.Context, gateway payments.Gateway, payment *payments.Result, amount decimal.Decimal) {
	_, err := gateway.RefundPayment(ctx, payments.RefundRequest{
		PaymentID:      payment.PaymentID,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		Reason:         "stock reservation failed",
		IdempotencyKey: "checkout-refund-" + payment.PaymentID,
	})
	logCtx := s.logg.WithField(ctx, "payment_id", payment.PaymentID)
	if err != nil {
		s.logg.Error(logCtx, "compensating refund failed", err)
		return
	}
	s.metrics.IncRefund()
	s.logg.Warn(logCtx, "payment refunded after reservation failure")
}

func (s *service) releaseReservation(ctx context.Context, id uuid.UUID) {
	if err := s.inventory.Release(ctx, id); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "reservation_id", id.String()),
			"reservation release failed during checkout abort", err)
	}
}

func reservationLines(lines []CartLine) []inventory.ReservationLine {
	out := make([]inventory.ReservationLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, inventory.ReservationLine{ProductID: line.ProductID, Qty: line.Qty})
	}
	return out
}

func validateInput(input CreateOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart lines are required")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line product id is required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line unit price must not be negative")
		}
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %q", input.PaymentMethod)
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if err := input.BillingAddress.Validate(); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	return nil
}

// stepError rewraps a step failure under the caller-facing message while
// keeping the original code when the cause carried one.
func stepError(fallback pkgerrors.Code, err error, format string) error {
	code := fallback
	reason := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
		reason = typed.Message()
	}
	return pkgerrors.Newf(code, format, reason)
}
