package types

import (
	"fmt"
	"strings"
)

// Address is the postal address snapshot stored on orders and shipments.
// Persisted as jsonb via the gorm json serializer.
type Address struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate checks the fields the fulfillment flow depends on.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	if strings.TrimSpace(a.Country) == "" {
		return fmt.Errorf("address: missing country")
	}
	return nil
}

// CountryCode returns the normalized ISO country code.
func (a Address) CountryCode() string {
	return strings.ToUpper(strings.TrimSpace(a.Country))
}
