package core

import (
	"context"
	"fmt"

	"dispatchbook/pkg/domain"
)

// NewInvalidPriceRule flags configured neighborhood prices that are not
// positive. Upserts reject negative amounts, but zero rows and restored data
// can still carry unusable fares.
func NewInvalidPriceRule() domain.Rule {
	return invalidPriceRule{}
}

type invalidPriceRule struct{}

func (invalidPriceRule) Name() string { return "invalid_price" }

func (invalidPriceRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, p := range view.ListPrices() {
		if p.Amount > 0 {
			continue
		}
		res.Issues = append(res.Issues, domain.Issue{
			Kind:    domain.IssueInvalidPrice,
			Rule:    "invalid_price",
			Message: fmt.Sprintf("neighborhood %q has non-positive price %.2f", p.Neighborhood, p.Amount),
			Entity:  domain.EntityPrice,
			Key:     p.Neighborhood,
		})
	}

	return res, nil
}
