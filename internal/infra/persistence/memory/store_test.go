package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatchbook/pkg/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T) (*Store, time.Time) {
	t.Helper()
	store := NewStore(nil)
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	store.SetNow(fixedClock(now))
	return store, now
}

func createRide(t *testing.T, store *Store, ride Ride) Ride {
	t.Helper()
	var created Ride
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateRide(ride)
		return err
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return created
}

func createDriver(t *testing.T, store *Store, driver Driver) Driver {
	t.Helper()
	var created Driver
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateDriver(driver)
		return err
	})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return created
}

func TestCreateRideAssignsIDAndTimestamps(t *testing.T) {
	store, now := newTestStore(t)

	created := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 30})
	if created.ID != 1 {
		t.Fatalf("expected first ID 1, got %d", created.ID)
	}
	if !created.CreatedAt.Equal(now) || !created.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps %v, got %v / %v", now, created.CreatedAt, created.UpdatedAt)
	}
	if !created.Timestamp.Equal(now) {
		t.Fatalf("expected ride timestamp defaulted to %v, got %v", now, created.Timestamp)
	}

	second := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "uptown", Amount: 20})
	if second.ID != 2 {
		t.Fatalf("expected sequential ID 2, got %d", second.ID)
	}
}

func TestCreateRideValidation(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRide(Ride{DriverName: "Dana", Amount: -5})
		return err
	})
	var vErr domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Field != "amount" {
		t.Fatalf("expected amount validation, got %s", vErr.Field)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRide(Ride{Amount: 10})
		return err
	})
	if !errors.As(err, &vErr) || vErr.Field != "driver_name" {
		t.Fatalf("expected driver_name validation, got %v", err)
	}
}

func TestDuplicateDriverNameRejected(t *testing.T) {
	store, _ := newTestStore(t)
	original := createDriver(t, store, Driver{Name: "Dana", Phone: "555-0100"})

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateDriver(Driver{Name: "dana"})
		return err
	})
	var dupErr domain.DuplicateKeyError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateKeyError for case-insensitive match, got %v", err)
	}

	kept, ok := store.FindDriver(original.ID)
	if !ok || kept.Phone != "555-0100" {
		t.Fatalf("original driver should be untouched, got %+v (found=%v)", kept, ok)
	}
	if store.Count(domain.EntityDriver) != 1 {
		t.Fatalf("expected a single driver, got %d", store.Count(domain.EntityDriver))
	}
}

func TestDriverStatusDefaultsToActive(t *testing.T) {
	store, _ := newTestStore(t)
	created := createDriver(t, store, Driver{Name: "Dana"})
	if created.Status != domain.DriverStatusActive {
		t.Fatalf("expected default status active, got %s", created.Status)
	}
}

func TestUpdateMissingRideFails(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateRide(42, func(r *Ride) error { return nil })
		return err
	})
	var nfErr domain.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	store, now := newTestStore(t)
	created := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 30})

	later := now.Add(time.Hour)
	store.SetNow(fixedClock(later))

	var updated Ride
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateRide(created.ID, func(r *Ride) error {
			r.Amount = 45
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update ride: %v", err)
	}
	if !updated.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt should be preserved, got %v", updated.CreatedAt)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Fatalf("UpdatedAt should refresh to %v, got %v", later, updated.UpdatedAt)
	}
	if updated.Amount != 45 {
		t.Fatalf("expected amount 45, got %v", updated.Amount)
	}
}

func TestDeleteReturnsExistence(t *testing.T) {
	store, _ := newTestStore(t)
	created := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 30})

	var first, second bool
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		first = tx.DeleteRide(created.ID)
		second = tx.DeleteRide(created.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !first || second {
		t.Fatalf("expected true then false, got %v then %v", first, second)
	}
}

func TestListRidesNewestFirstStable(t *testing.T) {
	store, now := newTestStore(t)
	early := now.Add(-time.Hour)

	createRide(t, store, Ride{DriverName: "A", Neighborhood: "x", Amount: 1, Timestamp: now})
	createRide(t, store, Ride{DriverName: "B", Neighborhood: "x", Amount: 1, Timestamp: early})
	createRide(t, store, Ride{DriverName: "C", Neighborhood: "x", Amount: 1, Timestamp: now})

	rides := store.ListRides()
	if len(rides) != 3 {
		t.Fatalf("expected 3 rides, got %d", len(rides))
	}
	// Equal timestamps keep insertion order: A before C, both before early B.
	if rides[0].DriverName != "A" || rides[1].DriverName != "C" || rides[2].DriverName != "B" {
		t.Fatalf("unexpected order: %s, %s, %s", rides[0].DriverName, rides[1].DriverName, rides[2].DriverName)
	}
}

func TestListDriversOrderedByName(t *testing.T) {
	store, _ := newTestStore(t)
	createDriver(t, store, Driver{Name: "Zoe"})
	createDriver(t, store, Driver{Name: "Adam"})
	createDriver(t, store, Driver{Name: "Mia"})

	drivers := store.ListDrivers()
	if drivers[0].Name != "Adam" || drivers[1].Name != "Mia" || drivers[2].Name != "Zoe" {
		t.Fatalf("unexpected order: %v", []string{drivers[0].Name, drivers[1].Name, drivers[2].Name})
	}
}

func TestListReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)
	created := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 30})

	rides := store.ListRides()
	rides[0].DriverName = "mutated"

	kept, _ := store.FindRide(created.ID)
	if kept.DriverName != "Dana" {
		t.Fatalf("store state should not alias returned slices, got %s", kept.DriverName)
	}
}

func TestPutPriceUpserts(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.PutPrice(NeighborhoodPrice{Neighborhood: "downtown", Amount: 40}); err != nil {
			return err
		}
		_, err := tx.PutPrice(NeighborhoodPrice{Neighborhood: "downtown", Amount: 55})
		return err
	})
	if err != nil {
		t.Fatalf("put price: %v", err)
	}
	price, ok := store.FindPrice("downtown")
	if !ok || price.Amount != 55 {
		t.Fatalf("expected upserted amount 55, got %+v (found=%v)", price, ok)
	}
	if store.Count(domain.EntityPrice) != 1 {
		t.Fatalf("expected one price row, got %d", store.Count(domain.EntityPrice))
	}
}

func TestExplicitIDBumpsSequence(t *testing.T) {
	store, _ := newTestStore(t)
	createRide(t, store, Ride{Base: domain.Base{ID: 7}, DriverName: "Dana", Neighborhood: "x", Amount: 1})

	next := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "x", Amount: 1})
	if next.ID != 8 {
		t.Fatalf("expected sequence to continue at 8, got %d", next.ID)
	}
}

func TestClearEmptiesCollection(t *testing.T) {
	store, _ := newTestStore(t)
	createRide(t, store, Ride{DriverName: "A", Neighborhood: "x", Amount: 1})
	createRide(t, store, Ride{DriverName: "B", Neighborhood: "x", Amount: 1})

	var removed int
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		removed = tx.Clear(domain.EntityRide)
		return nil
	})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if store.Count(domain.EntityRide) != 0 {
		t.Fatalf("expected empty ride collection, got %d", store.Count(domain.EntityRide))
	}
}

func TestFailedTransactionRollsBack(t *testing.T) {
	store, _ := newTestStore(t)

	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateRide(Ride{DriverName: "Dana", Neighborhood: "x", Amount: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if store.Count(domain.EntityRide) != 0 {
		t.Fatalf("failed transaction must not commit, got %d rides", store.Count(domain.EntityRide))
	}
}

func TestSubscribeReceivesCommittedChanges(t *testing.T) {
	store, _ := newTestStore(t)

	var seen []Change
	store.Subscribe(func(_ context.Context, changes []Change) {
		seen = append(seen, changes...)
	})

	created := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "x", Amount: 1})
	if len(seen) != 1 {
		t.Fatalf("expected one change, got %d", len(seen))
	}
	if seen[0].Entity != domain.EntityRide || seen[0].Action != domain.ActionCreate {
		t.Fatalf("unexpected change %+v", seen[0])
	}
	after, ok := seen[0].After.(Ride)
	if !ok || after.ID != created.ID {
		t.Fatalf("expected created ride in change payload, got %+v", seen[0].After)
	}
}

func TestObserverNotCalledOnFailure(t *testing.T) {
	store, _ := newTestStore(t)

	calls := 0
	store.Subscribe(func(context.Context, []Change) { calls++ })

	_, _ = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return errors.New("boom")
	})
	if calls != 0 {
		t.Fatalf("observer must not fire for failed transactions, got %d calls", calls)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ride := createRide(t, store, Ride{DriverName: "Dana", Neighborhood: "downtown", Amount: 30})
	createDriver(t, store, Driver{Name: "Dana"})

	snapshot := store.ExportState()

	restored := NewStore(nil)
	restored.ImportState(snapshot)

	got, ok := restored.FindRide(ride.ID)
	if !ok {
		t.Fatalf("ride missing after import")
	}
	if got != ride {
		t.Fatalf("ride mismatch after import: got %+v want %+v", got, ride)
	}

	next := createRide(t, restored, Ride{DriverName: "Dana", Neighborhood: "x", Amount: 1})
	if next.ID <= ride.ID {
		t.Fatalf("sequence must continue past imported IDs, got %d", next.ID)
	}
}

func TestImportMigratesBlankDriverStatus(t *testing.T) {
	snapshot := Snapshot{
		Drivers: map[int64]Driver{
			1: {Base: domain.Base{ID: 1}, Name: "Dana"},
		},
	}
	store := NewStore(nil)
	store.ImportState(snapshot)

	driver, ok := store.FindDriver(1)
	if !ok {
		t.Fatalf("driver missing after import")
	}
	if driver.Status != domain.DriverStatusActive {
		t.Fatalf("blank status should migrate to active, got %s", driver.Status)
	}
}
