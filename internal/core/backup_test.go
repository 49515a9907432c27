package core

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"dispatchbook/pkg/domain"
)

func seedFixture(t *testing.T, svc *Service) (Ride, Driver) {
	t.Helper()
	ctx := context.Background()
	driver, _, err := svc.RegisterDriver(ctx, Driver{Name: "Dana", Phone: "555-1234"})
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	ride := mustRegisterRide(t, svc, Ride{
		DriverName:   "Dana",
		Neighborhood: "downtown",
		Passenger:    "Morgan",
		Amount:       40,
		Timestamp:    testEpoch.AddDate(0, 0, -1),
	})
	if _, _, err := svc.SetPrice(ctx, "downtown", 40); err != nil {
		t.Fatalf("seed price: %v", err)
	}
	if _, _, err := svc.SetSetting(ctx, "currency", "USD"); err != nil {
		t.Fatalf("seed setting: %v", err)
	}
	if _, _, err := svc.AddLedgerEntry(ctx, LedgerEntry{Kind: LedgerRevenue, Description: "fares", Amount: 40}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return ride, driver
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())
	ride, driver := seedFixture(t, svc)

	backup, _, err := svc.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if backup.SchemaVersion != domain.SchemaVersion || backup.SizeBytes <= 0 {
		t.Fatalf("unexpected backup metadata: %+v", backup)
	}

	// Drift the live state away from the snapshot.
	if _, _, err := svc.DeleteRide(ctx, ride.ID); err != nil {
		t.Fatalf("delete ride: %v", err)
	}
	mustRegisterRide(t, svc, Ride{DriverName: "Dana", Neighborhood: "uptown", Amount: 20})
	if _, _, err := svc.SetSetting(ctx, "currency", "EUR"); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	report, _, err := svc.RestoreBackup(ctx, backup.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if report.Restored[EntityRide] != 1 || report.Restored[EntityDriver] != 1 {
		t.Fatalf("unexpected restore counts: %+v", report.Restored)
	}

	rides, err := svc.ListRides(ctx, RideFilter{})
	if err != nil {
		t.Fatalf("list rides: %v", err)
	}
	if len(rides) != 1 {
		t.Fatalf("expected exactly the snapshot ride, got %d", len(rides))
	}
	// Restore reproduces the record field for field, timestamps included.
	if !reflect.DeepEqual(rides[0], ride) {
		t.Fatalf("restored ride differs:\n got %+v\nwant %+v", rides[0], ride)
	}

	restoredDriver, err := svc.GetDriver(ctx, driver.ID)
	if err != nil || !reflect.DeepEqual(restoredDriver, driver) {
		t.Fatalf("restored driver differs: %+v err=%v", restoredDriver, err)
	}
	setting, err := svc.GetSetting(ctx, "currency")
	if err != nil || setting.Value != "USD" {
		t.Fatalf("setting must roll back: %+v err=%v", setting, err)
	}

	notifications, err := svc.ListNotifications(ctx, false)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].Title != "Backup restored" {
		t.Fatalf("expected single restore notification, got %+v", notifications)
	}
}

func TestRestoreBackupMissing(t *testing.T) {
	svc, _ := newTestService(t, WithoutNotifications())
	_, _, err := svc.RestoreBackup(context.Background(), 42)
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Entity != EntityBackup {
		t.Fatalf("unexpected entity %s", nf.Entity)
	}
}

func TestListBackupsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())

	first, _, err := svc.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	second, _, err := svc.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}

	backups, err := svc.ListBackups(ctx)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 2 || backups[0].ID != second.ID || backups[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", backups)
	}

	existed, _, err := svc.DeleteBackup(ctx, first.ID)
	if err != nil || !existed {
		t.Fatalf("delete backup: existed=%v err=%v", existed, err)
	}
}

func TestExportImportSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	source, _ := newTestService(t, WithoutNotifications())
	seedFixture(t, source)

	data, err := source.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	target, _ := newTestService(t, WithoutNotifications())
	report, _, err := target.ImportSnapshot(ctx, data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	for entity, want := range map[EntityType]int{EntityRide: 1, EntityDriver: 1, EntityPrice: 1, EntityLedgerEntry: 1} {
		if report.Restored[entity] != want {
			t.Fatalf("restored %s: got %d want %d", entity, report.Restored[entity], want)
		}
	}
}

func TestImportSnapshotRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())

	var invalid domain.ValidationError
	if _, _, err := svc.ImportSnapshot(ctx, []byte("{not json")); !errors.As(err, &invalid) {
		t.Fatalf("expected ValidationError for malformed input, got %v", err)
	}

	newer, _ := json.Marshal(SnapshotDocument{SchemaVersion: domain.SchemaVersion + 1})
	if _, _, err := svc.ImportSnapshot(ctx, newer); !errors.As(err, &invalid) {
		t.Fatalf("expected ValidationError for newer schema, got %v", err)
	}

	// Rejected imports must leave existing state alone.
	seedFixture(t, svc)
	if _, _, err := svc.ImportSnapshot(ctx, newer); err == nil {
		t.Fatalf("expected rejection")
	}
	count, err := svc.Count(ctx, EntityRide)
	if err != nil || count != 1 {
		t.Fatalf("state must be untouched: count=%d err=%v", count, err)
	}
}

func TestImportSnapshotIsBestEffort(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithoutNotifications())

	doc := SnapshotDocument{
		SchemaVersion: domain.SchemaVersion,
		Rides: []Ride{
			{Base: Base{ID: 1}, DriverName: "Dana", Neighborhood: "downtown", Amount: 10},
			{Base: Base{ID: 2}, DriverName: "Dana", Neighborhood: "uptown", Amount: -5},
		},
		Drivers: []Driver{{Base: Base{ID: 1}, Name: "Dana", Status: DriverStatusActive}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	report, _, err := svc.ImportSnapshot(ctx, data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Restored[EntityRide] != 1 || report.Restored[EntityDriver] != 1 {
		t.Fatalf("unexpected restore counts: %+v", report.Restored)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", report.Failures)
	}
	failure := report.Failures[0]
	if failure.Entity != EntityRide || failure.Key != "2" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestResetScopes(t *testing.T) {
	ctx := context.Background()

	t.Run("rides only", func(t *testing.T) {
		svc, _ := newTestService(t, WithoutNotifications())
		seedFixture(t, svc)
		if _, err := svc.ResetAll(ctx, ResetRides); err != nil {
			t.Fatalf("reset: %v", err)
		}
		rides, _ := svc.Count(ctx, EntityRide)
		drivers, _ := svc.Count(ctx, EntityDriver)
		if rides != 0 || drivers != 1 {
			t.Fatalf("rides=%d drivers=%d", rides, drivers)
		}
	})

	t.Run("everything reseeds defaults", func(t *testing.T) {
		svc, _ := newTestService(t)
		seedFixture(t, svc)
		if _, err := svc.ResetAll(ctx, ResetEverything); err != nil {
			t.Fatalf("reset: %v", err)
		}

		drivers, err := svc.ListDrivers(ctx, DriverFilter{})
		if err != nil || len(drivers) != len(DefaultDrivers()) {
			t.Fatalf("expected default roster, got %d err=%v", len(drivers), err)
		}
		prices, _ := svc.ListPrices(ctx)
		if len(prices) != len(DefaultPrices()) {
			t.Fatalf("expected default fare table, got %d", len(prices))
		}
		settings, _ := svc.ListSettings(ctx)
		if len(settings) != len(DefaultSettings()) {
			t.Fatalf("expected default settings, got %d", len(settings))
		}
		rides, _ := svc.Count(ctx, EntityRide)
		if rides != 0 {
			t.Fatalf("rides must be cleared, got %d", rides)
		}

		// Reseeding must not trigger per-record notifications; only the
		// reset summary survives.
		notifications, err := svc.ListNotifications(ctx, false)
		if err != nil {
			t.Fatalf("list notifications: %v", err)
		}
		if len(notifications) != 1 || notifications[0].Title != "Data reset" {
			t.Fatalf("expected single reset notification, got %+v", notifications)
		}
	})

	t.Run("unknown scope", func(t *testing.T) {
		svc, _ := newTestService(t, WithoutNotifications())
		_, err := svc.ResetAll(ctx, ResetScope("bogus"))
		var invalid domain.ValidationError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}
