package enums

import "fmt"

// ShippingPreference is the customer's stated ordering preference for
// shipping options.
type ShippingPreference string

const (
	ShippingPreferenceCheapest ShippingPreference = "cheapest"
	ShippingPreferenceFastest  ShippingPreference = "fastest"
	ShippingPreferenceEco      ShippingPreference = "eco"
)

var validShippingPreferences = []ShippingPreference{
	ShippingPreferenceCheapest,
	ShippingPreferenceFastest,
	ShippingPreferenceEco,
}

// String implements fmt.Stringer.
func (s ShippingPreference) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingPreference.
func (s ShippingPreference) IsValid() bool {
	for _, candidate := range validShippingPreferences {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingPreference converts raw input into a ShippingPreference.
func ParseShippingPreference(value string) (ShippingPreference, error) {
	for _, candidate := range validShippingPreferences {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping preference %q", value)
}
