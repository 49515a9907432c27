package core

import (
	"context"
	"testing"

	"dispatchbook/internal/infra/persistence/memory"
	"dispatchbook/pkg/domain"
)

func TestOrphanedRideDetectedAndFixed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())

	if _, _, err := svc.RegisterDriver(ctx, Driver{Name: "Dana"}); err != nil {
		t.Fatalf("register driver: %v", err)
	}
	mustRegisterRide(t, svc, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 10})
	orphan := mustRegisterRide(t, svc, Ride{DriverName: "Ghost", Neighborhood: "uptown", Amount: 10})

	result, err := svc.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %s", len(result.Issues), result.Summary())
	}
	issue := result.Issues[0]
	if issue.Kind != domain.IssueOrphanedRide || issue.Key != formatID(orphan.ID) {
		t.Fatalf("unexpected issue: %+v", issue)
	}

	report, _, err := svc.FixIssues(ctx, result.Issues)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if report.RemovedRides != 1 || len(report.Manual) != 0 {
		t.Fatalf("unexpected fix report: %+v", report)
	}

	result, err = svc.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if result.HasIssues() {
		t.Fatalf("expected clean state after fix, got %s", result.Summary())
	}
	if _, err := svc.GetRide(ctx, orphan.ID); err == nil {
		t.Fatalf("orphaned ride must be removed")
	}
}

func TestInvalidPriceResetToDefault(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())

	// Zero prices are accepted at write time and flagged by the checker.
	if _, _, err := svc.SetPrice(ctx, "downtown", 0); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, _, err := svc.SetPrice(ctx, "nowhere", 0); err != nil {
		t.Fatalf("set price: %v", err)
	}

	result, err := svc.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %s", result.Summary())
	}

	report, _, err := svc.FixIssues(ctx, result.Issues)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if report.ResetPrices != 2 {
		t.Fatalf("expected 2 reset prices, got %+v", report)
	}

	// Known neighborhood falls back to its default table entry, the unknown
	// one to the flat fallback.
	downtown, err := svc.ResolvePrice(ctx, "downtown")
	if err != nil || downtown != DefaultPrices()["downtown"] {
		t.Fatalf("downtown price: got %v err=%v", downtown, err)
	}
	nowhere, err := svc.ResolvePrice(ctx, "nowhere")
	if err != nil || nowhere != fallbackPrice {
		t.Fatalf("nowhere price: got %v err=%v", nowhere, err)
	}

	result, err = svc.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if result.HasIssues() {
		t.Fatalf("expected clean state after fix, got %s", result.Summary())
	}
}

func TestDuplicateDriversRequireManualResolution(t *testing.T) {
	ctx := context.Background()
	engine := NewDefaultRulesEngine()
	store := memory.NewStore(engine)
	// Registration blocks duplicate names, so inject state the way a raw
	// backend load would.
	store.ImportState(memory.Snapshot{
		Drivers: map[int64]Driver{
			1: {Base: Base{ID: 1}, Name: "Dana", Status: DriverStatusActive},
			2: {Base: Base{ID: 2}, Name: "dana", Status: DriverStatusActive},
		},
	})
	svc := NewService(store, WithRulesEngine(engine), WithoutNotifications())

	result, err := svc.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(result.Issues) != 1 || result.Issues[0].Kind != domain.IssueDuplicateDriverName {
		t.Fatalf("expected one duplicate issue, got %s", result.Summary())
	}

	report, _, err := svc.FixIssues(ctx, result.Issues)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if len(report.Manual) != 1 || report.Manual[0].Kind != domain.IssueDuplicateDriverName {
		t.Fatalf("duplicate must be handed back for manual review, got %+v", report)
	}
	count, err := svc.Count(ctx, EntityDriver)
	if err != nil || count != 2 {
		t.Fatalf("drivers must stay untouched: count=%d err=%v", count, err)
	}
}
