// Package reports renders dispatch data into exportable report artifacts.
// Templates read the service layer (never write) and the worker materializes
// their rows into JSON, CSV, or HTML blobs.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"dispatchbook/internal/core"
)

// Format identifies a report output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html"
	default:
		return "application/json"
	}
}

// Extension returns the artifact filename extension for the format.
func (f Format) Extension() string { return string(f) }

// Column describes one report column.
type Column struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Window bounds a report to a calendar-day range. Nil bounds are open.
type Window struct {
	From *time.Time
	To   *time.Time
}

// RunResult holds the rendered rows of one template run.
type RunResult struct {
	Columns     []Column         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Template describes a runnable report.
type Template struct {
	Slug        string
	Title       string
	Description string
	Columns     []Column
	Run         func(ctx context.Context, window Window) (RunResult, error)
}

// Catalog resolves report templates by slug.
type Catalog interface {
	Templates() []Template
	Resolve(slug string) (Template, bool)
}

// ServiceCatalog exposes the built-in report set over a core service.
type ServiceCatalog struct {
	templates map[string]Template
	order     []string
}

// NewCatalog builds the built-in report catalog reading from svc.
func NewCatalog(svc *core.Service) *ServiceCatalog {
	c := &ServiceCatalog{templates: make(map[string]Template)}
	c.add(rideLogTemplate(svc))
	c.add(financeTemplate(svc))
	c.add(leaderboardTemplate(svc))
	c.add(dailyActivityTemplate(svc))
	return c
}

func (c *ServiceCatalog) add(t Template) {
	c.templates[t.Slug] = t
	c.order = append(c.order, t.Slug)
}

// Templates lists the catalog in registration order.
func (c *ServiceCatalog) Templates() []Template {
	out := make([]Template, 0, len(c.order))
	for _, slug := range c.order {
		out = append(out, c.templates[slug])
	}
	return out
}

// Resolve returns the template registered under slug.
func (c *ServiceCatalog) Resolve(slug string) (Template, bool) {
	t, ok := c.templates[slug]
	return t, ok
}

func rideLogTemplate(svc *core.Service) Template {
	columns := []Column{
		{Name: "date", Title: "Date"},
		{Name: "driver", Title: "Driver"},
		{Name: "neighborhood", Title: "Neighborhood"},
		{Name: "passenger", Title: "Passenger"},
		{Name: "amount", Title: "Amount"},
	}
	return Template{
		Slug:        "ride-log",
		Title:       "Ride Log",
		Description: "Every recorded ride in the window, newest first.",
		Columns:     columns,
		Run: func(ctx context.Context, window Window) (RunResult, error) {
			rides, err := svc.ListRides(ctx, core.RideFilter{From: window.From, To: window.To})
			if err != nil {
				return RunResult{}, err
			}
			rows := make([]map[string]any, 0, len(rides))
			for _, r := range rides {
				rows = append(rows, map[string]any{
					"date":         r.Timestamp.Format("2006-01-02 15:04"),
					"driver":       r.DriverName,
					"neighborhood": r.Neighborhood,
					"passenger":    r.Passenger,
					"amount":       r.Amount,
				})
			}
			return RunResult{Columns: columns, Rows: rows, GeneratedAt: time.Now().UTC()}, nil
		},
	}
}

func financeTemplate(svc *core.Service) Template {
	columns := []Column{
		{Name: "category", Title: "Category"},
		{Name: "entries", Title: "Entries"},
		{Name: "total", Title: "Total"},
	}
	return Template{
		Slug:        "finance",
		Title:       "Financial Summary",
		Description: "Ledger totals per category plus the overall balance.",
		Columns:     columns,
		Run: func(ctx context.Context, window Window) (RunResult, error) {
			filter := core.LedgerFilter{From: window.From, To: window.To}
			groups, err := svc.LedgerByCategory(ctx, filter)
			if err != nil {
				return RunResult{}, err
			}
			summary, err := svc.FinancialSummary(ctx, filter)
			if err != nil {
				return RunResult{}, err
			}
			sort.SliceStable(groups, func(i, j int) bool { return groups[i].Total > groups[j].Total })
			rows := make([]map[string]any, 0, len(groups)+1)
			for _, g := range groups {
				rows = append(rows, map[string]any{
					"category": g.Category,
					"entries":  g.Count,
					"total":    g.Total,
				})
			}
			rows = append(rows, map[string]any{
				"category": "balance",
				"entries":  len(groups),
				"total":    summary.Balance,
			})
			return RunResult{Columns: columns, Rows: rows, GeneratedAt: time.Now().UTC()}, nil
		},
	}
}

func leaderboardTemplate(svc *core.Service) Template {
	columns := []Column{
		{Name: "driver", Title: "Driver"},
		{Name: "rides", Title: "Rides"},
		{Name: "revenue", Title: "Revenue"},
	}
	return Template{
		Slug:        "leaderboard",
		Title:       "Driver Leaderboard",
		Description: "Top drivers ranked by revenue.",
		Columns:     columns,
		Run: func(ctx context.Context, _ Window) (RunResult, error) {
			standings, err := svc.DriverLeaderboard(ctx, 10, core.LeaderboardByRevenue)
			if err != nil {
				return RunResult{}, err
			}
			rows := make([]map[string]any, 0, len(standings))
			for _, s := range standings {
				rows = append(rows, map[string]any{
					"driver":  s.DriverName,
					"rides":   s.Rides,
					"revenue": s.Revenue,
				})
			}
			return RunResult{Columns: columns, Rows: rows, GeneratedAt: time.Now().UTC()}, nil
		},
	}
}

func dailyActivityTemplate(svc *core.Service) Template {
	columns := []Column{
		{Name: "date", Title: "Date"},
		{Name: "rides", Title: "Rides"},
	}
	return Template{
		Slug:        "daily-activity",
		Title:       "Daily Activity",
		Description: "Ride counts per day for the trailing 30 days.",
		Columns:     columns,
		Run: func(ctx context.Context, window Window) (RunResult, error) {
			end := time.Time{}
			if window.To != nil {
				end = *window.To
			}
			series, err := svc.DailyRideCounts(ctx, 30, end)
			if err != nil {
				return RunResult{}, err
			}
			rows := make([]map[string]any, 0, len(series))
			for _, bucket := range series {
				rows = append(rows, map[string]any{
					"date":  bucket.Date,
					"rides": bucket.Count,
				})
			}
			return RunResult{Columns: columns, Rows: rows, GeneratedAt: time.Now().UTC()}, nil
		},
	}
}

// formatValue renders a cell for CSV and HTML output.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', 2, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
