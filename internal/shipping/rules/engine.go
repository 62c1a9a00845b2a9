package rules

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/pkg/db/models"
	"github.com/northcart/storefront-backend/pkg/enums"
)

// Zone multipliers applied when the destination has no configured zone rows.
var (
	defaultMultiplier = decimal.NewFromFloat(1.15)
	metroMultiplier   = decimal.NewFromInt(1)
	remoteMultiplier  = decimal.NewFromFloat(1.3)

	premiumOrderValue = decimal.NewFromInt(1000)

	// carbon model: 0.5 kg CO2 per shipped kg, 2 currency units per kg CO2
	carbonPerKg     = decimal.NewFromFloat(0.5)
	offsetCostPerKg = decimal.NewFromInt(2)
)

// Fallback Swedish postal bands used when shipping_zones has no rows:
// 10000-19999 Stockholm metro, 90000-98499 far north.
var builtinZones = []models.ShippingZone{
	{Country: "SE", Name: "metro", PrefixStart: 10000, PrefixEnd: 19999, Multiplier: metroMultiplier},
	{Country: "SE", Name: "remote-north", PrefixStart: 90000, PrefixEnd: 98499, Multiplier: remoteMultiplier},
}

// Option is a candidate rate with its zone-adjusted price.
type Option struct {
	Rate  models.ShippingRate
	Price decimal.Decimal
}

// Engine applies carrier selection rules. It is pure: every input arrives as
// an argument and no call touches storage or the clock.
type Engine struct{}

// NewEngine returns the rules engine.
func NewEngine() Engine {
	return Engine{}
}

// FilterByWeight keeps rates whose weight band covers the parcel.
func (Engine) FilterByWeight(rates []models.ShippingRate, weightKg decimal.Decimal) []models.ShippingRate {
	out := make([]models.ShippingRate, 0, len(rates))
	for _, rate := range rates {
		if weightKg.LessThan(rate.MinWeightKg) {
			continue
		}
		if weightKg.GreaterThan(rate.MaxWeightKg) {
			continue
		}
		out = append(out, rate)
	}
	return out
}

// PreferPremium moves premium carriers to the front for high-value orders.
// The relative order inside each group is preserved.
func (Engine) PreferPremium(rates []models.ShippingRate, orderValue decimal.Decimal) []models.ShippingRate {
	if !orderValue.GreaterThan(premiumOrderValue) {
		return rates
	}
	premium := make([]models.ShippingRate, 0, len(rates))
	rest := make([]models.ShippingRate, 0, len(rates))
	for _, rate := range rates {
		if rate.IsPremium {
			premium = append(premium, rate)
		} else {
			rest = append(rest, rate)
		}
	}
	return append(premium, rest...)
}

// ZoneMultiplier resolves the price multiplier for a postal code from the
// configured zones, falling back to the builtin bands, then the default.
func (Engine) ZoneMultiplier(zones []models.ShippingZone, country, postalCode string) decimal.Decimal {
	prefix, ok := postalPrefix(postalCode)
	if !ok {
		return metroMultiplier
	}
	if len(zones) == 0 {
		zones = builtinZones
	}
	for _, zone := range zones {
		if zone.Country != "" && country != "" && zone.Country != country {
			continue
		}
		if prefix >= zone.PrefixStart && prefix <= zone.PrefixEnd {
			return zone.Multiplier
		}
	}
	return defaultMultiplier
}

// ApplyZone scales every candidate's price by the zone multiplier.
func (e Engine) ApplyZone(rates []models.ShippingRate, zones []models.ShippingZone, country, postalCode string) []Option {
	multiplier := metroMultiplier
	if postalCode != "" {
		multiplier = e.ZoneMultiplier(zones, country, postalCode)
	}
	options := make([]Option, 0, len(rates))
	for _, rate := range rates {
		options = append(options, Option{
			Rate:  rate,
			Price: rate.BasePrice.Mul(multiplier).Round(2),
		})
	}
	return options
}

// SortByPreference orders options cheapest-first or fastest-first. The eco
// preference sorts cheapest-first; the eco pick happens in Recommend.
func (Engine) SortByPreference(options []Option, pref enums.ShippingPreference) {
	switch pref {
	case enums.ShippingPreferenceFastest:
		sort.SliceStable(options, func(i, j int) bool {
			return options[i].Rate.EstimatedDays < options[j].Rate.EstimatedDays
		})
	default:
		sort.SliceStable(options, func(i, j int) bool {
			return options[i].Price.LessThan(options[j].Price)
		})
	}
}

// Recommend picks the option a customer most likely wants: cheapest by
// default, fastest for orders above the premium threshold, cheapest eco rate
// when the eco preference is set and one exists.
func (Engine) Recommend(options []Option, orderValue decimal.Decimal, pref enums.ShippingPreference) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}

	if pref == enums.ShippingPreferenceEco {
		var best *Option
		for i := range options {
			if !options[i].Rate.IsEcoFriendly {
				continue
			}
			if best == nil || options[i].Price.LessThan(best.Price) {
				best = &options[i]
			}
		}
		if best != nil {
			return *best, true
		}
	}

	if orderValue.GreaterThan(premiumOrderValue) {
		fastest := options[0]
		for _, opt := range options[1:] {
			if opt.Rate.EstimatedDays < fastest.Rate.EstimatedDays {
				fastest = opt
			}
		}
		return fastest, true
	}

	cheapest := options[0]
	for _, opt := range options[1:] {
		if opt.Price.LessThan(cheapest.Price) {
			cheapest = opt
		}
	}
	return cheapest, true
}

// CarbonKg converts shipped mass to emitted CO2 mass.
func (Engine) CarbonKg(weightKg decimal.Decimal) decimal.Decimal {
	return weightKg.Mul(carbonPerKg)
}

// OffsetCost prices the offset for the given CO2 mass.
func (Engine) OffsetCost(carbonKg decimal.Decimal) decimal.Decimal {
	return carbonKg.Mul(offsetCostPerKg).Round(2)
}

func postalPrefix(postalCode string) (int, bool) {
	digits := make([]rune, 0, len(postalCode))
	for _, r := range postalCode {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return 0, false
	}
	if len(digits) > 5 {
		digits = digits[:5]
	}
	prefix, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, false
	}
	return prefix, true
}
