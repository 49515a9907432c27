package core

import (
	"context"
	"strconv"

	"dispatchbook/pkg/domain"
)

// FixReport describes what the automatic fixer changed. Issues it cannot
// resolve mechanically are handed back for manual review.
type FixReport struct {
	RemovedRides int
	ResetPrices  int
	Manual       []Issue
}

// CheckConsistency evaluates all registered rules against committed state.
func (s *Service) CheckConsistency(ctx context.Context) (Result, error) {
	start := s.clock.Now()
	var result Result
	err := s.store.View(ctx, func(v TransactionView) error {
		res, evalErr := s.engine.Evaluate(ctx, v, nil)
		if evalErr != nil {
			return evalErr
		}
		result = res
		return nil
	})
	s.observe(ctx, "check_consistency", err, s.clock.Now().Sub(start))
	if err != nil {
		return Result{}, err
	}
	if result.HasIssues() {
		s.logger.Warn("consistency check found issues", "summary", result.Summary())
	}
	return result, nil
}

// FixIssues repairs findings in one transaction: orphaned rides are deleted
// and invalid prices reset to the default fare (flat fallback when the
// neighborhood has no default). Duplicate driver names require a human
// decision about which record survives and are returned untouched.
func (s *Service) FixIssues(ctx context.Context, issues []Issue) (FixReport, Result, error) {
	var report FixReport
	res, err := s.run(ctx, "fix_issues", func(tx Transaction) error {
		for _, issue := range issues {
			switch issue.Kind {
			case domain.IssueOrphanedRide:
				id, err := strconv.ParseInt(issue.Key, 10, 64)
				if err != nil {
					report.Manual = append(report.Manual, issue)
					continue
				}
				if tx.DeleteRide(id) {
					report.RemovedRides++
				}
			case domain.IssueInvalidPrice:
				amount, ok := s.defaults.Lookup(issue.Key)
				if !ok {
					amount = fallbackPrice
				}
				if _, err := tx.PutPrice(NeighborhoodPrice{Neighborhood: issue.Key, Amount: amount}); err != nil {
					return err
				}
				report.ResetPrices++
			default:
				report.Manual = append(report.Manual, issue)
			}
		}
		return nil
	})
	return report, res, err
}
