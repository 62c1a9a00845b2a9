package shipping

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/internal/shipping/rules"
	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Line is one cart position the calculator weighs and prices.
type Line struct {
	ProductID uuid.UUID
	Qty       int
}

// Quote is a priced shipping choice for a concrete cart.
type Quote struct {
	RateID        uuid.UUID       `json:"rate_id"`
	CarrierCode   string          `json:"carrier_code"`
	ServiceName   string          `json:"service_name"`
	Price         decimal.Decimal `json:"price"`
	EstimatedDays int             `json:"estimated_days"`
	IsEcoFriendly bool            `json:"is_eco_friendly"`
	CarbonKg      decimal.Decimal `json:"carbon_kg"`
	OffsetCost    decimal.Decimal `json:"offset_cost"`
	FreeShipping  bool            `json:"free_shipping"`
}

// OptionsInput parametrizes the broader all-options lookup.
type OptionsInput struct {
	Lines      []Line
	Country    string
	PostalCode string
	OrderValue decimal.Decimal
	Preference enums.ShippingPreference
}

// Options is every viable choice plus the engine's recommendation.
type Options struct {
	Options     []Quote `json:"options"`
	Recommended *Quote  `json:"recommended,omitempty"`
}

// Calculator resolves shipping prices for carts.
type Calculator interface {
	CalculateShipping(ctx context.Context, lines []Line, country string) (*Quote, error)
	QuoteRate(ctx context.Context, lines []Line, country string, rateID uuid.UUID) (*Quote, error)
	AllOptions(ctx context.Context, input OptionsInput) (*Options, error)
	CalculateEcoShipping(ctx context.Context, lines []Line, country string) ([]Quote, error)
	DynamicPrice(ctx context.Context, carrierCode, serviceType string, weightKg decimal.Decimal, country, postalCode string) (decimal.Decimal, error)
}

type calculator struct {
	repo    Repository
	catalog productLoader
	engine  rules.Engine
	logg    *logger.Logger
}

// NewCalculator builds the shipping calculator.
func NewCalculator(repo Repository, catalog productLoader, logg *logger.Logger) (Calculator, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &calculator{
		repo:    repo,
		catalog: catalog,
		engine:  rules.NewEngine(),
		logg:    logg,
	}, nil
}

// CalculateShipping returns the cheapest viable rate for the cart, with the
// price forced to zero when the country's free-shipping threshold is met.
func (c *calculator) CalculateShipping(ctx context.Context, lines []Line, country string) (*Quote, error) {
	weight, subtotal, err := c.weighCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	candidates, err := c.viableRates(ctx, country, weight)
	if err != nil {
		return nil, err
	}

	cheapest := candidates[0]
	for _, rate := range candidates[1:] {
		if rate.BasePrice.LessThan(cheapest.BasePrice) {
			cheapest = rate
		}
	}

	quote := quoteFromRate(cheapest, cheapest.BasePrice)
	if free, err := c.freeShippingApplies(ctx, country, subtotal); err != nil {
		return nil, err
	} else if free {
		quote.Price = decimal.Zero
		quote.ServiceName = cheapest.ServiceName + " (free shipping)"
		quote.FreeShipping = true
	}
	return &quote, nil
}

// QuoteRate prices a caller-chosen rate for the cart, enforcing the rate's
// weight band and the free-shipping threshold.
func (c *calculator) QuoteRate(ctx context.Context, lines []Line, country string, rateID uuid.UUID) (*Quote, error) {
	weight, subtotal, err := c.weighCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	rate, err := c.repo.FindRateByID(ctx, rateID)
	if err != nil {
		return nil, err
	}
	if rate.Country != country {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "shipping rate %s does not serve %s", rateID, country)
	}
	if weight.LessThan(rate.MinWeightKg) || weight.GreaterThan(rate.MaxWeightKg) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "shipping rate %s does not cover weight %s kg", rateID, weight.StringFixed(3))
	}

	quote := quoteFromRate(*rate, rate.BasePrice)
	if free, err := c.freeShippingApplies(ctx, country, subtotal); err != nil {
		return nil, err
	} else if free {
		quote.Price = decimal.Zero
		quote.ServiceName = rate.ServiceName + " (free shipping)"
		quote.FreeShipping = true
	}
	return &quote, nil
}

// AllOptions returns every viable option, zone-adjusted and preference-sorted,
// plus the engine's recommendation.
func (c *calculator) AllOptions(ctx context.Context, input OptionsInput) (*Options, error) {
	weight, subtotal, err := c.weighCart(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	orderValue := input.OrderValue
	if orderValue.IsZero() {
		orderValue = subtotal
	}

	candidates, err := c.viableRates(ctx, input.Country, weight)
	if err != nil {
		return nil, err
	}

	candidates = c.engine.PreferPremium(candidates, orderValue)

	zones, err := c.repo.FindZones(ctx, input.Country)
	if err != nil {
		return nil, err
	}
	adjusted := c.engine.ApplyZone(candidates, zones, input.Country, input.PostalCode)
	c.engine.SortByPreference(adjusted, input.Preference)

	out := &Options{Options: make([]Quote, 0, len(adjusted))}
	for _, opt := range adjusted {
		quote := quoteFromRate(opt.Rate, opt.Price)
		quote.CarbonKg = c.engine.CarbonKg(weight)
		quote.OffsetCost = c.engine.OffsetCost(quote.CarbonKg)
		out.Options = append(out.Options, quote)
	}

	if recommended, ok := c.engine.Recommend(adjusted, orderValue, input.Preference); ok {
		quote := quoteFromRate(recommended.Rate, recommended.Price)
		quote.CarbonKg = c.engine.CarbonKg(weight)
		quote.OffsetCost = c.engine.OffsetCost(quote.CarbonKg)
		out.Recommended = &quote
	}
	return out, nil
}

// CalculateEcoShipping returns the standard quote plus a slightly slower,
// slightly pricier variant carrying the carbon offset.
func (c *calculator) CalculateEcoShipping(ctx context.Context, lines []Line, country string) ([]Quote, error) {
	weight, _, err := c.weighCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	standard, err := c.CalculateShipping(ctx, lines, country)
	if err != nil {
		return nil, err
	}

	carbon := c.engine.CarbonKg(weight)
	offset := c.engine.OffsetCost(carbon)

	eco := *standard
	eco.ServiceName = standard.ServiceName + " (eco)"
	eco.Price = standard.Price.Add(offset).Round(2)
	eco.EstimatedDays = standard.EstimatedDays + 1
	eco.IsEcoFriendly = true
	eco.CarbonKg = carbon
	eco.OffsetCost = offset

	return []Quote{*standard, eco}, nil
}

// DynamicPrice resolves a weight-banded price (base + per-kg, zone-adjusted),
// falling back to the flat carrier rate.
func (c *calculator) DynamicPrice(ctx context.Context, carrierCode, serviceType string, weightKg decimal.Decimal, country, postalCode string) (decimal.Decimal, error) {
	rulesRows, err := c.repo.FindPricingRules(ctx, carrierCode, serviceType, country)
	if err != nil {
		return decimal.Zero, err
	}

	zones, err := c.repo.FindZones(ctx, country)
	if err != nil {
		return decimal.Zero, err
	}
	multiplier := decimal.NewFromInt(1)
	if postalCode != "" {
		multiplier = c.engine.ZoneMultiplier(zones, country, postalCode)
	}

	for _, rule := range rulesRows {
		if weightKg.LessThan(rule.MinWeightKg) || weightKg.GreaterThan(rule.MaxWeightKg) {
			continue
		}
		price := rule.BaseAmount.Add(rule.PerKgAmount.Mul(weightKg))
		return price.Mul(multiplier).Round(2), nil
	}

	// flat rate fallback by carrier + service + country
	rates, err := c.repo.FindRatesByCountry(ctx, country)
	if err != nil {
		return decimal.Zero, err
	}
	for _, rate := range rates {
		if rate.CarrierCode != carrierCode || rate.ServiceName != serviceType {
			continue
		}
		return rate.BasePrice.Mul(multiplier).Round(2), nil
	}

	return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "no pricing found")
}

func (c *calculator) weighCart(ctx context.Context, lines []Line) (weight, subtotal decimal.Decimal, err error) {
	if len(lines) == 0 {
		return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "cart lines are required")
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		product, perr := c.catalog.FindByID(ctx, line.ProductID)
		if perr != nil {
			return decimal.Zero, decimal.Zero, perr
		}
		qty := decimal.NewFromInt(int64(line.Qty))
		weight = weight.Add(product.WeightKg.Mul(qty))
		subtotal = subtotal.Add(product.Price.Mul(qty))
	}
	return weight, subtotal, nil
}

func (c *calculator) viableRates(ctx context.Context, country string, weight decimal.Decimal) ([]models.ShippingRate, error) {
	rates, err := c.repo.FindRatesByCountry(ctx, country)
	if err != nil {
		return nil, err
	}
	candidates := c.engine.FilterByWeight(rates, weight)
	if len(candidates) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no shipping rates cover %s for weight %s kg", country, weight.StringFixed(3))
	}
	return candidates, nil
}

func (c *calculator) freeShippingApplies(ctx context.Context, country string, subtotal decimal.Decimal) (bool, error) {
	threshold, err := c.repo.FreeShippingThreshold(ctx, country)
	if err != nil {
		return false, err
	}
	return threshold != nil && subtotal.GreaterThanOrEqual(*threshold), nil
}

func quoteFromRate(rate models.ShippingRate, price decimal.Decimal) Quote {
	return Quote{
		RateID:        rate.ID,
		CarrierCode:   rate.CarrierCode,
		ServiceName:   rate.ServiceName,
		Price:         price.Round(2),
		EstimatedDays: rate.EstimatedDays,
		IsEcoFriendly: rate.IsEcoFriendly,
	}
}
