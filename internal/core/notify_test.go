package core

import (
	"context"
	"testing"
)

func TestRideLifecycleNotifications(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	ride := mustRegisterRide(t, svc, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 10})
	notifications, err := svc.ListNotifications(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Title != "Ride added" || notifications[0].Severity != SeveritySuccess {
		t.Fatalf("unexpected notification: %+v", notifications[0])
	}

	if _, _, err := svc.UpdateRide(ctx, ride.ID, func(r *Ride) error {
		r.Amount = 15
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	notifications, _ = svc.ListNotifications(ctx, false)
	if len(notifications) != 2 || notifications[0].Title != "Ride updated" || notifications[0].Severity != SeverityInfo {
		t.Fatalf("unexpected notifications after update: %+v", notifications)
	}

	if _, _, err := svc.DeleteRide(ctx, ride.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	notifications, _ = svc.ListNotifications(ctx, false)
	if len(notifications) != 3 || notifications[0].Title != "Ride deleted" || notifications[0].Severity != SeverityWarning {
		t.Fatalf("unexpected notifications after delete: %+v", notifications)
	}
}

func TestDriverLifecycleNotifications(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	driver, _, err := svc.RegisterDriver(ctx, Driver{Name: "Dana"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	notifications, _ := svc.ListNotifications(ctx, false)
	if len(notifications) != 1 || notifications[0].Title != "Driver registered" {
		t.Fatalf("unexpected notifications: %+v", notifications)
	}

	if _, _, err := svc.DeleteDriver(ctx, driver.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	notifications, _ = svc.ListNotifications(ctx, false)
	if len(notifications) != 2 || notifications[0].Title != "Driver removed" || notifications[0].Severity != SeverityWarning {
		t.Fatalf("unexpected notifications after delete: %+v", notifications)
	}
}

func TestNonAuditedEntitiesStaySilent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, _, err := svc.SetPrice(ctx, "downtown", 40); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, _, err := svc.SetSetting(ctx, "currency", "USD"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if _, _, err := svc.AddLedgerEntry(ctx, LedgerEntry{Kind: LedgerRevenue, Amount: 10}); err != nil {
		t.Fatalf("add ledger: %v", err)
	}

	count, err := svc.Count(ctx, EntityNotification)
	if err != nil || count != 0 {
		t.Fatalf("expected no notifications, got %d err=%v", count, err)
	}
}

func TestWithoutNotificationsDisablesRecorder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())

	mustRegisterRide(t, svc, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 10})
	count, err := svc.Count(ctx, EntityNotification)
	if err != nil || count != 0 {
		t.Fatalf("expected no notifications, got %d err=%v", count, err)
	}
}
