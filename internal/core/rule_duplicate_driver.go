package core

import (
	"context"
	"fmt"
	"strings"

	"dispatchbook/pkg/domain"
)

// NewDuplicateDriverNameRule flags drivers sharing a name. Registration
// enforces uniqueness, but a restore or import can reintroduce duplicates.
func NewDuplicateDriverNameRule() domain.Rule {
	return duplicateDriverNameRule{}
}

type duplicateDriverNameRule struct{}

func (duplicateDriverNameRule) Name() string { return "duplicate_driver_name" }

func (duplicateDriverNameRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	seen := make(map[string]domain.Driver)
	for _, d := range view.ListDrivers() {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		first, dup := seen[key]
		if !dup {
			seen[key] = d
			continue
		}
		res.Issues = append(res.Issues, domain.Issue{
			Kind:    domain.IssueDuplicateDriverName,
			Rule:    "duplicate_driver_name",
			Message: fmt.Sprintf("drivers %d and %d share the name %q", first.ID, d.ID, d.Name),
			Entity:  domain.EntityDriver,
			Key:     formatID(d.ID),
		})
	}

	return res, nil
}
