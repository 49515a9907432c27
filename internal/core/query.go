package core

import (
	"strings"
	"time"
)

// RideFilter narrows a ride listing. Zero-value fields match everything.
// From/To are calendar-day bounds in their own locations: From matches from
// midnight, To matches through the end of its day.
type RideFilter struct {
	From         *time.Time
	To           *time.Time
	DriverName   string
	Neighborhood string
	MinAmount    *float64
	MaxAmount    *float64
	Search       string
}

// DriverFilter narrows a driver listing.
type DriverFilter struct {
	Status DriverStatus
	Search string
}

// LedgerFilter narrows a ledger listing.
type LedgerFilter struct {
	From      *time.Time
	To        *time.Time
	Kind      LedgerKind
	Category  string
	MinAmount *float64
	MaxAmount *float64
	Search    string
}

// CategoryGroup aggregates ledger entries sharing one category value.
type CategoryGroup struct {
	Category string
	Total    float64
	Count    int
	Records  []LedgerEntry
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func inDayRange(ts time.Time, from, to *time.Time) bool {
	if from != nil && ts.Before(dayStart(*from)) {
		return false
	}
	if to != nil && ts.After(dayEnd(*to)) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchesAny(needle string, fields ...string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	for _, field := range fields {
		if containsFold(field, needle) {
			return true
		}
	}
	return false
}

// FilterRides applies the filter, preserving the input ordering.
func FilterRides(rides []Ride, f RideFilter) []Ride {
	out := make([]Ride, 0, len(rides))
	for _, r := range rides {
		if !inDayRange(r.Timestamp, f.From, f.To) {
			continue
		}
		if f.DriverName != "" && !strings.EqualFold(r.DriverName, f.DriverName) {
			continue
		}
		if f.Neighborhood != "" && !strings.EqualFold(r.Neighborhood, f.Neighborhood) {
			continue
		}
		if f.MinAmount != nil && r.Amount < *f.MinAmount {
			continue
		}
		if f.MaxAmount != nil && r.Amount > *f.MaxAmount {
			continue
		}
		if !matchesAny(f.Search, r.DriverName, r.Neighborhood, r.Passenger, r.Notes) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterDrivers applies the filter, preserving the input ordering.
func FilterDrivers(drivers []Driver, f DriverFilter) []Driver {
	out := make([]Driver, 0, len(drivers))
	for _, d := range drivers {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if !matchesAny(f.Search, d.Name, d.Phone, d.Email, d.TaxID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FilterLedgerEntries applies the filter, preserving the input ordering.
func FilterLedgerEntries(entries []LedgerEntry, f LedgerFilter) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !inDayRange(e.Date, f.From, f.To) {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if f.MinAmount != nil && e.Amount < *f.MinAmount {
			continue
		}
		if f.MaxAmount != nil && e.Amount > *f.MaxAmount {
			continue
		}
		if !matchesAny(f.Search, e.Description, e.Category, e.Notes) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GroupLedgerByCategory buckets entries by category in first-seen order.
// Entries with an empty category group under "uncategorized".
func GroupLedgerByCategory(entries []LedgerEntry) []CategoryGroup {
	index := make(map[string]int)
	groups := make([]CategoryGroup, 0)
	for _, e := range entries {
		category := strings.TrimSpace(e.Category)
		if category == "" {
			category = "uncategorized"
		}
		i, ok := index[category]
		if !ok {
			i = len(groups)
			index[category] = i
			groups = append(groups, CategoryGroup{Category: category})
		}
		groups[i].Total += e.Amount
		groups[i].Count++
		groups[i].Records = append(groups[i].Records, e)
	}
	return groups
}
