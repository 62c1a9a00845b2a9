package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/api/responses"
	"github.com/northcart/storefront-backend/api/validators"
	"github.com/northcart/storefront-backend/internal/shipping"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
)

// ShippingOptions lists every viable rate for a cart plus the recommended one.
func ShippingOptions(calc shipping.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping calculator unavailable"))
			return
		}

		var payload shippingOptionsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preference := enums.ShippingPreferenceCheapest
		if payload.Preference != "" {
			parsed, err := enums.ParseShippingPreference(payload.Preference)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
				return
			}
			preference = parsed
		}

		lines := make([]shipping.Line, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, shipping.Line{ProductID: line.ProductID, Qty: line.Qty})
		}

		options, err := calc.AllOptions(r.Context(), shipping.OptionsInput{
			Lines:      lines,
			Country:    payload.Country,
			PostalCode: payload.PostalCode,
			OrderValue: payload.OrderValue,
			Preference: preference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

type shippingOptionsRequest struct {
	Lines      []shippingLineBody `json:"lines" validate:"required,min=1,dive"`
	Country    string             `json:"country" validate:"required,len=2"`
	PostalCode string             `json:"postal_code,omitempty"`
	OrderValue decimal.Decimal    `json:"order_value,omitempty"`
	Preference string             `json:"preference,omitempty"`
}

type shippingLineBody struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}
