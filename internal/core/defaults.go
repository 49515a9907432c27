package core

import "strings"

// PriceTable maps lowercase neighborhood names to fallback fares used when no
// price row is configured.
type PriceTable map[string]float64

// Lookup resolves a neighborhood case-insensitively.
func (t PriceTable) Lookup(neighborhood string) (float64, bool) {
	amount, ok := t[strings.ToLower(strings.TrimSpace(neighborhood))]
	return amount, ok
}

// fallbackPrice is the flat fare the consistency fixer applies to invalid
// price rows that have no entry in the default table.
const fallbackPrice = 50

// DefaultPrices returns the built-in fare table seeded on reset and consulted
// when a ride's neighborhood has no configured price.
func DefaultPrices() PriceTable {
	return PriceTable{
		"downtown": 50,
		"midtown":  55,
		"uptown":   45,
		"airport":  80,
		"harbor":   60,
	}
}

// DefaultSettings returns the configuration rows seeded on first run and on a
// full reset.
func DefaultSettings() []Setting {
	return []Setting{
		{Key: "company_name", Value: "Dispatch Book"},
		{Key: "currency", Value: "USD"},
		{Key: "backup_retention", Value: "10"},
		{Key: "notification_retention_days", Value: "30"},
	}
}

// DefaultDrivers returns the starter roster seeded on a full reset.
func DefaultDrivers() []Driver {
	return []Driver{
		{Name: "Alex Pereira", Status: DriverStatusActive},
		{Name: "Jordan Mills", Status: DriverStatusActive},
	}
}
