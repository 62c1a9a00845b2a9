package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/api/responses"
	"github.com/northcart/storefront-backend/api/validators"
	checkoutsvc "github.com/northcart/storefront-backend/internal/checkout"
	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
	"github.com/northcart/storefront-backend/pkg/types"
)

// Checkout turns the submitted cart into a persisted order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		lines := make([]checkoutsvc.CartLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkoutsvc.CartLine{
				ProductID: line.ProductID,
				Qty:       line.Qty,
				UnitPrice: line.UnitPrice,
			})
		}

		order, err := svc.CreateOrder(r.Context(), checkoutsvc.CreateOrderInput{
			CustomerID:      payload.CustomerID,
			CartID:          payload.CartID,
			Lines:           lines,
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			PaymentMethod:   method,
			PaymentToken:    payload.PaymentToken,
			ShippingRateID:  payload.ShippingRateID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

type checkoutRequest struct {
	CustomerID      uuid.UUID          `json:"customer_id" validate:"required"`
	CartID          *uuid.UUID         `json:"cart_id,omitempty"`
	Lines           []checkoutLineBody `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress types.Address      `json:"shipping_address" validate:"required"`
	BillingAddress  types.Address      `json:"billing_address" validate:"required"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	PaymentToken    string             `json:"payment_token" validate:"required"`
	ShippingRateID  *uuid.UUID         `json:"shipping_rate_id,omitempty"`
}

type checkoutLineBody struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Qty       int             `json:"qty" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

type orderResponse struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     int64               `json:"order_number"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Tax             decimal.Decimal     `json:"tax"`
	Shipping        decimal.Decimal     `json:"shipping"`
	Total           decimal.Decimal     `json:"total"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentID       string              `json:"payment_id"`
	CarrierCode     *string             `json:"carrier_code,omitempty"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	ShippingAddress types.Address       `json:"shipping_address"`
	BillingAddress  types.Address       `json:"billing_address"`
	Items           []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return orderResponse{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		Status:          order.Status.String(),
		Currency:        string(order.Currency),
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		Shipping:        order.Shipping,
		Total:           order.Total,
		PaymentMethod:   order.PaymentMethod.String(),
		PaymentID:       order.PaymentID,
		CarrierCode:     order.CarrierCode,
		TrackingNumber:  order.TrackingNumber,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Items:           items,
	}
}
