package core

import (
	"context"
	"sort"
	"time"
)

// DailyCount is one calendar-day bucket in a ride time series.
type DailyCount struct {
	Date  string `json:"date"` // 2006-01-02, local time
	Count int    `json:"count"`
}

// NeighborhoodCount is one bucket of the all-time neighborhood distribution.
type NeighborhoodCount struct {
	Neighborhood string `json:"neighborhood"`
	Count        int    `json:"count"`
}

// LeaderboardMetric selects the ranking dimension for the driver leaderboard.
type LeaderboardMetric string

const (
	// LeaderboardByRides ranks drivers by ride count.
	LeaderboardByRides LeaderboardMetric = "rides"
	// LeaderboardByRevenue ranks drivers by summed ride amounts.
	LeaderboardByRevenue LeaderboardMetric = "revenue"
)

// DriverStanding is one row of the driver leaderboard.
type DriverStanding struct {
	DriverName string  `json:"driver_name"`
	Rides      int     `json:"rides"`
	Revenue    float64 `json:"revenue"`
}

// FinancialSummary aggregates the ledger.
type FinancialSummary struct {
	Revenue       float64 `json:"revenue"`
	Expense       float64 `json:"expense"`
	Balance       float64 `json:"balance"`
	MarginPercent float64 `json:"margin_percent"`
}

// DailyRideCounts buckets rides by calendar day in local time for the
// trailing window of days ending at end, oldest label first. Days without
// rides appear with a zero count.
func (s *Service) DailyRideCounts(ctx context.Context, days int, end time.Time) ([]DailyCount, error) {
	if days <= 0 {
		return nil, nil
	}
	if end.IsZero() {
		end = s.clock.Now()
	}
	counts := make(map[string]int)
	err := s.store.View(ctx, func(v TransactionView) error {
		for _, r := range v.ListRides() {
			counts[r.Timestamp.Format("2006-01-02")]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	series := make([]DailyCount, 0, days)
	start := dayStart(end).AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		label := start.AddDate(0, 0, i).Format("2006-01-02")
		series = append(series, DailyCount{Date: label, Count: counts[label]})
	}
	return series, nil
}

// NeighborhoodDistribution counts rides per neighborhood across all time,
// most frequent first, ties ordered by name.
func (s *Service) NeighborhoodDistribution(ctx context.Context) ([]NeighborhoodCount, error) {
	counts := make(map[string]int)
	err := s.store.View(ctx, func(v TransactionView) error {
		for _, r := range v.ListRides() {
			counts[r.Neighborhood]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	distribution := make([]NeighborhoodCount, 0, len(counts))
	for neighborhood, count := range counts {
		distribution = append(distribution, NeighborhoodCount{Neighborhood: neighborhood, Count: count})
	}
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].Count != distribution[j].Count {
			return distribution[i].Count > distribution[j].Count
		}
		return distribution[i].Neighborhood < distribution[j].Neighborhood
	})
	return distribution, nil
}

// DriverLeaderboard returns the top-k drivers ranked by the given metric.
// Ties keep the order in which driver names first appear in the ride history.
func (s *Service) DriverLeaderboard(ctx context.Context, k int, metric LeaderboardMetric) ([]DriverStanding, error) {
	if k <= 0 {
		return nil, nil
	}
	var rides []Ride
	err := s.store.View(ctx, func(v TransactionView) error {
		rides = v.ListRides()
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Rides list newest first; group in insertion order instead.
	sort.Slice(rides, func(i, j int) bool { return rides[i].ID < rides[j].ID })

	index := make(map[string]int)
	standings := make([]DriverStanding, 0)
	for _, r := range rides {
		i, ok := index[r.DriverName]
		if !ok {
			i = len(standings)
			index[r.DriverName] = i
			standings = append(standings, DriverStanding{DriverName: r.DriverName})
		}
		standings[i].Rides++
		standings[i].Revenue += r.Amount
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if metric == LeaderboardByRevenue {
			return standings[i].Revenue > standings[j].Revenue
		}
		return standings[i].Rides > standings[j].Rides
	})
	if len(standings) > k {
		standings = standings[:k]
	}
	return standings, nil
}

// MonthOverMonthVariation compares the ride count of ref's calendar month to
// the month before it as a percentage change. A previous month with no rides
// yields 100 by convention.
func (s *Service) MonthOverMonthVariation(ctx context.Context, ref time.Time) (float64, error) {
	if ref.IsZero() {
		ref = s.clock.Now()
	}
	currentStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	previousStart := currentStart.AddDate(0, -1, 0)
	nextStart := currentStart.AddDate(0, 1, 0)

	var current, previous int
	err := s.store.View(ctx, func(v TransactionView) error {
		for _, r := range v.ListRides() {
			switch {
			case !r.Timestamp.Before(currentStart) && r.Timestamp.Before(nextStart):
				current++
			case !r.Timestamp.Before(previousStart) && r.Timestamp.Before(currentStart):
				previous++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if previous == 0 {
		return 100, nil
	}
	return float64(current-previous) / float64(previous) * 100, nil
}

// Summarize aggregates ledger entries matching the filter.
func Summarize(entries []LedgerEntry) FinancialSummary {
	var summary FinancialSummary
	for _, e := range entries {
		switch e.Kind {
		case LedgerRevenue:
			summary.Revenue += e.Amount
		case LedgerExpense:
			summary.Expense += e.Amount
		}
	}
	summary.Balance = summary.Revenue - summary.Expense
	if summary.Revenue != 0 {
		summary.MarginPercent = summary.Balance / summary.Revenue * 100
	}
	return summary
}

// FinancialSummary aggregates the ledger within the filter window.
func (s *Service) FinancialSummary(ctx context.Context, filter LedgerFilter) (FinancialSummary, error) {
	entries, err := s.ListLedgerEntries(ctx, filter)
	if err != nil {
		return FinancialSummary{}, err
	}
	return Summarize(entries), nil
}
