package domain

import "context"

// TransactionView provides read-only access to store state. Every returned
// record is an independent copy; callers can never alias store-internal data.
type TransactionView interface {
	FindRide(id int64) (Ride, bool)
	ListRides() []Ride
	FindDriver(id int64) (Driver, bool)
	FindDriverByName(name string) (Driver, bool)
	ListDrivers() []Driver
	FindPrice(neighborhood string) (NeighborhoodPrice, bool)
	ListPrices() []NeighborhoodPrice
	FindSetting(key string) (Setting, bool)
	ListSettings() []Setting
	FindLedgerEntry(id int64) (LedgerEntry, bool)
	ListLedgerEntries() []LedgerEntry
	FindNotification(id int64) (Notification, bool)
	ListNotifications() []Notification
	FindBackup(id int64) (Backup, bool)
	ListBackups() []Backup
	Count(entity EntityType) int
}

// Transaction exposes the domain operations a persistence implementation must
// support within an atomic scope. Deletes return whether the record existed
// rather than erroring on absence, which keeps bulk cleanup call sites simple.
type Transaction interface {
	TransactionView

	CreateRide(Ride) (Ride, error)
	UpdateRide(id int64, mutator func(*Ride) error) (Ride, error)
	DeleteRide(id int64) bool

	CreateDriver(Driver) (Driver, error)
	UpdateDriver(id int64, mutator func(*Driver) error) (Driver, error)
	DeleteDriver(id int64) bool

	PutPrice(NeighborhoodPrice) (NeighborhoodPrice, error)
	DeletePrice(neighborhood string) bool

	PutSetting(Setting) (Setting, error)
	DeleteSetting(key string) bool

	CreateLedgerEntry(LedgerEntry) (LedgerEntry, error)
	UpdateLedgerEntry(id int64, mutator func(*LedgerEntry) error) (LedgerEntry, error)
	DeleteLedgerEntry(id int64) bool

	CreateNotification(Notification) (Notification, error)
	UpdateNotification(id int64, mutator func(*Notification) error) (Notification, error)
	DeleteNotification(id int64) bool

	CreateBackup(Backup) (Backup, error)
	DeleteBackup(id int64) bool

	// Clear empties a collection unconditionally and returns the number of
	// removed records. Used by reset and restore flows.
	Clear(entity EntityType) int
}

// ChangeObserver receives the change set of every committed transaction.
type ChangeObserver func(ctx context.Context, changes []Change)

// PersistentStore is the abstraction over durable backends. Mutations run
// one-at-a-time under a store-wide lock; reads observe committed state only.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	// Subscribe registers an observer invoked after each successful commit
	// with the committed change set. Observers run outside the store lock.
	Subscribe(observer ChangeObserver)

	FindRide(id int64) (Ride, bool)
	ListRides() []Ride
	FindDriver(id int64) (Driver, bool)
	FindDriverByName(name string) (Driver, bool)
	ListDrivers() []Driver
	FindPrice(neighborhood string) (NeighborhoodPrice, bool)
	ListPrices() []NeighborhoodPrice
	FindSetting(key string) (Setting, bool)
	ListSettings() []Setting
	ListLedgerEntries() []LedgerEntry
	ListNotifications() []Notification
	FindBackup(id int64) (Backup, bool)
	ListBackups() []Backup
	Count(entity EntityType) int

	Close() error
}
