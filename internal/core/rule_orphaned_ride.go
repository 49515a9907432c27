package core

import (
	"context"
	"fmt"
	"strings"

	"dispatchbook/pkg/domain"
)

// NewOrphanedRideRule flags rides whose driver name no longer matches a live
// driver record.
func NewOrphanedRideRule() domain.Rule {
	return orphanedRideRule{}
}

type orphanedRideRule struct{}

func (orphanedRideRule) Name() string { return "orphaned_ride" }

func (orphanedRideRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	drivers := view.ListDrivers()
	names := make(map[string]struct{}, len(drivers))
	for _, d := range drivers {
		names[strings.ToLower(d.Name)] = struct{}{}
	}

	for _, ride := range view.ListRides() {
		if _, ok := names[strings.ToLower(ride.DriverName)]; ok {
			continue
		}
		res.Issues = append(res.Issues, domain.Issue{
			Kind:    domain.IssueOrphanedRide,
			Rule:    "orphaned_ride",
			Message: fmt.Sprintf("ride %d references unknown driver %q", ride.ID, ride.DriverName),
			Entity:  domain.EntityRide,
			Key:     formatID(ride.ID),
		})
	}

	return res, nil
}
