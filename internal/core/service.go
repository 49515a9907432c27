package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"dispatchbook/internal/infra/persistence/memory"
	"dispatchbook/pkg/domain"
)

// notificationRetention bounds how long notifications are kept when the
// storage backend reports quota exhaustion.
const notificationRetention = 30 * 24 * time.Hour

// Service exposes higher-level transactional operations over the record
// store. All mutations run through the store's transaction scope; reads
// observe committed state only.
type Service struct {
	store    PersistentStore
	engine   *RulesEngine
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	defaults PriceTable

	notifyDisabled bool
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger installs a structured logger. The default discards output.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder installs a metrics sink for per-operation observations.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = metrics }
}

// WithRulesEngine overrides the engine consulted by the consistency checker.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithDefaultPrices replaces the built-in fallback fare table.
func WithDefaultPrices(table PriceTable) ServiceOption {
	return func(s *Service) {
		if table != nil {
			s.defaults = table
		}
	}
}

// WithoutNotifications disables the change observer that records audit
// notifications after commits.
func WithoutNotifications() ServiceOption {
	return func(s *Service) { s.notifyDisabled = true }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		engine:   NewDefaultRulesEngine(),
		logger:   noopLogger{},
		clock:    systemClock{},
		defaults: DefaultPrices(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.notifyDisabled {
		recorder := NewNotificationRecorder(store, s.logger, s.clock)
		store.Subscribe(recorder.Observe)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine falls back to the default policy set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	store := memory.NewStore(engine)
	return NewService(store, append([]ServiceOption{WithRulesEngine(engine)}, opts...)...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// run executes a mutating transaction and records its outcome. Quota-flagged
// storage failures trigger a best-effort purge of aged notifications so the
// caller's retry has room to succeed.
func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) error) (Result, error) {
	start := s.clock.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.observe(ctx, op, err, s.clock.Now().Sub(start))
	if err != nil {
		var storageErr domain.StorageError
		if errors.As(err, &storageErr) && storageErr.Quota {
			s.recoverQuota(ctx)
		}
	}
	return res, err
}

func (s *Service) observe(ctx context.Context, op string, err error, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, duration)
	}
	if err != nil {
		s.logger.Error("operation failed", "op", op, "error", err)
		return
	}
	s.logger.Debug("operation complete", "op", op, "duration_ms", duration.Milliseconds())
}

// recoverQuota drops notifications past retention so a retried write can fit.
func (s *Service) recoverQuota(ctx context.Context) {
	cutoff := s.clock.Now().Add(-notificationRetention)
	removed := 0
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, n := range tx.ListNotifications() {
			if n.Timestamp.Before(cutoff) {
				if tx.DeleteNotification(n.ID) {
					removed++
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("quota recovery failed", "error", err)
		return
	}
	s.logger.Warn("storage quota exceeded, purged aged notifications", "removed", removed)
}

// Rides -----------------------------------------------------------------------

// RegisterRide persists a new ride. When no amount is supplied the fare is
// resolved from the configured neighborhood price, then the default table,
// then zero.
func (s *Service) RegisterRide(ctx context.Context, ride Ride) (Ride, Result, error) {
	var created Ride
	res, err := s.run(ctx, "register_ride", func(tx Transaction) error {
		if ride.Amount == 0 {
			ride.Amount = resolvePrice(tx, s.defaults, ride.Neighborhood)
		}
		if ride.Timestamp.IsZero() {
			ride.Timestamp = s.clock.Now()
		}
		var err error
		created, err = tx.CreateRide(ride)
		return err
	})
	return created, res, err
}

// UpdateRide mutates a ride using the provided mutator.
func (s *Service) UpdateRide(ctx context.Context, id int64, mutator func(*Ride) error) (Ride, Result, error) {
	var updated Ride
	res, err := s.run(ctx, "update_ride", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateRide(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteRide removes a ride, reporting whether it existed.
func (s *Service) DeleteRide(ctx context.Context, id int64) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_ride", func(tx Transaction) error {
		existed = tx.DeleteRide(id)
		return nil
	})
	return existed, res, err
}

// GetRide looks up a single ride by ID.
func (s *Service) GetRide(ctx context.Context, id int64) (Ride, error) {
	var ride Ride
	err := s.store.View(ctx, func(v TransactionView) error {
		found, ok := v.FindRide(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityRide, Key: formatID(id)}
		}
		ride = found
		return nil
	})
	return ride, err
}

// ListRides returns rides matching the filter, newest first.
func (s *Service) ListRides(ctx context.Context, filter RideFilter) ([]Ride, error) {
	var rides []Ride
	err := s.store.View(ctx, func(v TransactionView) error {
		rides = FilterRides(v.ListRides(), filter)
		return nil
	})
	return rides, err
}

// Drivers ---------------------------------------------------------------------

// RegisterDriver persists a new driver. Status defaults to active.
func (s *Service) RegisterDriver(ctx context.Context, driver Driver) (Driver, Result, error) {
	var created Driver
	res, err := s.run(ctx, "register_driver", func(tx Transaction) error {
		var err error
		created, err = tx.CreateDriver(driver)
		return err
	})
	return created, res, err
}

// UpdateDriver mutates a driver using the provided mutator.
func (s *Service) UpdateDriver(ctx context.Context, id int64, mutator func(*Driver) error) (Driver, Result, error) {
	var updated Driver
	res, err := s.run(ctx, "update_driver", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDriver(id, mutator)
		return err
	})
	return updated, res, err
}

// SetDriverStatus transitions a driver to the given status.
func (s *Service) SetDriverStatus(ctx context.Context, id int64, status DriverStatus) (Driver, Result, error) {
	return s.UpdateDriver(ctx, id, func(d *Driver) error {
		d.Status = status
		return nil
	})
}

// DeleteDriver removes a driver, reporting whether it existed. Rides keep
// their recorded driver name; the consistency checker surfaces the orphans.
func (s *Service) DeleteDriver(ctx context.Context, id int64) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_driver", func(tx Transaction) error {
		existed = tx.DeleteDriver(id)
		return nil
	})
	return existed, res, err
}

// GetDriver looks up a single driver by ID.
func (s *Service) GetDriver(ctx context.Context, id int64) (Driver, error) {
	var driver Driver
	err := s.store.View(ctx, func(v TransactionView) error {
		found, ok := v.FindDriver(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityDriver, Key: formatID(id)}
		}
		driver = found
		return nil
	})
	return driver, err
}

// GetDriverByName looks up a driver by its unique name, case-insensitively.
func (s *Service) GetDriverByName(ctx context.Context, name string) (Driver, error) {
	var driver Driver
	err := s.store.View(ctx, func(v TransactionView) error {
		found, ok := v.FindDriverByName(name)
		if !ok {
			return domain.NotFoundError{Entity: EntityDriver, Key: name}
		}
		driver = found
		return nil
	})
	return driver, err
}

// ListDrivers returns drivers matching the filter, ordered by name.
func (s *Service) ListDrivers(ctx context.Context, filter DriverFilter) ([]Driver, error) {
	var drivers []Driver
	err := s.store.View(ctx, func(v TransactionView) error {
		drivers = FilterDrivers(v.ListDrivers(), filter)
		return nil
	})
	return drivers, err
}

// Prices ----------------------------------------------------------------------

// SetPrice upserts the configured fare for a neighborhood.
func (s *Service) SetPrice(ctx context.Context, neighborhood string, amount float64) (NeighborhoodPrice, Result, error) {
	var saved NeighborhoodPrice
	res, err := s.run(ctx, "set_price", func(tx Transaction) error {
		var err error
		saved, err = tx.PutPrice(NeighborhoodPrice{Neighborhood: neighborhood, Amount: amount})
		return err
	})
	return saved, res, err
}

// DeletePrice removes a configured price row, reporting whether it existed.
func (s *Service) DeletePrice(ctx context.Context, neighborhood string) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_price", func(tx Transaction) error {
		existed = tx.DeletePrice(neighborhood)
		return nil
	})
	return existed, res, err
}

// ListPrices returns all configured prices ordered by neighborhood.
func (s *Service) ListPrices(ctx context.Context) ([]NeighborhoodPrice, error) {
	var prices []NeighborhoodPrice
	err := s.store.View(ctx, func(v TransactionView) error {
		prices = v.ListPrices()
		return nil
	})
	return prices, err
}

// ResolvePrice returns the fare for a neighborhood: the configured price when
// present, otherwise the default table, otherwise zero.
func (s *Service) ResolvePrice(ctx context.Context, neighborhood string) (float64, error) {
	var amount float64
	err := s.store.View(ctx, func(v TransactionView) error {
		amount = resolvePrice(v, s.defaults, neighborhood)
		return nil
	})
	return amount, err
}

func resolvePrice(v TransactionView, defaults PriceTable, neighborhood string) float64 {
	if price, ok := v.FindPrice(strings.TrimSpace(neighborhood)); ok {
		return price.Amount
	}
	if amount, ok := defaults.Lookup(neighborhood); ok {
		return amount
	}
	return 0
}

// Settings --------------------------------------------------------------------

// SetSetting upserts a configuration row.
func (s *Service) SetSetting(ctx context.Context, key, value string) (Setting, Result, error) {
	var saved Setting
	res, err := s.run(ctx, "set_setting", func(tx Transaction) error {
		var err error
		saved, err = tx.PutSetting(Setting{Key: key, Value: value})
		return err
	})
	return saved, res, err
}

// GetSetting looks up a configuration row by key.
func (s *Service) GetSetting(ctx context.Context, key string) (Setting, error) {
	var setting Setting
	err := s.store.View(ctx, func(v TransactionView) error {
		found, ok := v.FindSetting(key)
		if !ok {
			return domain.NotFoundError{Entity: EntitySetting, Key: key}
		}
		setting = found
		return nil
	})
	return setting, err
}

// ListSettings returns all configuration rows ordered by key.
func (s *Service) ListSettings(ctx context.Context) ([]Setting, error) {
	var settings []Setting
	err := s.store.View(ctx, func(v TransactionView) error {
		settings = v.ListSettings()
		return nil
	})
	return settings, err
}

// DeleteSetting removes a configuration row, reporting whether it existed.
func (s *Service) DeleteSetting(ctx context.Context, key string) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_setting", func(tx Transaction) error {
		existed = tx.DeleteSetting(key)
		return nil
	})
	return existed, res, err
}

// EnsureDefaults seeds default settings on first run. Existing rows are never
// overwritten.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	_, err := s.run(ctx, "ensure_defaults", func(tx Transaction) error {
		if tx.Count(EntitySetting) > 0 {
			return nil
		}
		for _, setting := range DefaultSettings() {
			if _, err := tx.PutSetting(setting); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// Ledger ----------------------------------------------------------------------

// AddLedgerEntry persists a manual financial entry.
func (s *Service) AddLedgerEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, Result, error) {
	var created LedgerEntry
	res, err := s.run(ctx, "add_ledger_entry", func(tx Transaction) error {
		if entry.Date.IsZero() {
			entry.Date = s.clock.Now()
		}
		var err error
		created, err = tx.CreateLedgerEntry(entry)
		return err
	})
	return created, res, err
}

// UpdateLedgerEntry mutates a ledger entry using the provided mutator.
func (s *Service) UpdateLedgerEntry(ctx context.Context, id int64, mutator func(*LedgerEntry) error) (LedgerEntry, Result, error) {
	var updated LedgerEntry
	res, err := s.run(ctx, "update_ledger_entry", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateLedgerEntry(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteLedgerEntry removes a ledger entry, reporting whether it existed.
func (s *Service) DeleteLedgerEntry(ctx context.Context, id int64) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_ledger_entry", func(tx Transaction) error {
		existed = tx.DeleteLedgerEntry(id)
		return nil
	})
	return existed, res, err
}

// ListLedgerEntries returns ledger entries matching the filter, newest first.
func (s *Service) ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := s.store.View(ctx, func(v TransactionView) error {
		entries = FilterLedgerEntries(v.ListLedgerEntries(), filter)
		return nil
	})
	return entries, err
}

// LedgerByCategory groups filtered ledger entries by category.
func (s *Service) LedgerByCategory(ctx context.Context, filter LedgerFilter) ([]CategoryGroup, error) {
	entries, err := s.ListLedgerEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	return GroupLedgerByCategory(entries), nil
}

// Notifications ----------------------------------------------------------------

// ListNotifications returns notifications newest first. When unreadOnly is
// set, read notifications are skipped.
func (s *Service) ListNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	var notifications []Notification
	err := s.store.View(ctx, func(v TransactionView) error {
		for _, n := range v.ListNotifications() {
			if unreadOnly && n.Read {
				continue
			}
			notifications = append(notifications, n)
		}
		return nil
	})
	return notifications, err
}

// UnreadNotificationCount returns the number of unread notifications.
func (s *Service) UnreadNotificationCount(ctx context.Context) (int, error) {
	unread, err := s.ListNotifications(ctx, true)
	return len(unread), err
}

// MarkNotificationRead flags a single notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, id int64) (Notification, Result, error) {
	var updated Notification
	res, err := s.run(ctx, "mark_notification_read", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateNotification(id, func(n *Notification) error {
			n.Read = true
			return nil
		})
		return err
	})
	return updated, res, err
}

// MarkAllNotificationsRead flags every unread notification as read and
// returns how many were updated.
func (s *Service) MarkAllNotificationsRead(ctx context.Context) (int, Result, error) {
	marked := 0
	res, err := s.run(ctx, "mark_all_notifications_read", func(tx Transaction) error {
		for _, n := range tx.ListNotifications() {
			if n.Read {
				continue
			}
			if _, err := tx.UpdateNotification(n.ID, func(n *Notification) error {
				n.Read = true
				return nil
			}); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	return marked, res, err
}

// DeleteNotification removes a notification, reporting whether it existed.
func (s *Service) DeleteNotification(ctx context.Context, id int64) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_notification", func(tx Transaction) error {
		existed = tx.DeleteNotification(id)
		return nil
	})
	return existed, res, err
}

// PurgeNotificationsOlderThan removes notifications whose timestamp predates
// the cutoff and returns how many were removed.
func (s *Service) PurgeNotificationsOlderThan(ctx context.Context, cutoff time.Time) (int, Result, error) {
	removed := 0
	res, err := s.run(ctx, "purge_notifications", func(tx Transaction) error {
		for _, n := range tx.ListNotifications() {
			if n.Timestamp.Before(cutoff) {
				if tx.DeleteNotification(n.ID) {
					removed++
				}
			}
		}
		return nil
	})
	return removed, res, err
}

// Counts ----------------------------------------------------------------------

// Count returns the number of records in one collection.
func (s *Service) Count(ctx context.Context, entity EntityType) (int, error) {
	var count int
	err := s.store.View(ctx, func(v TransactionView) error {
		count = v.Count(entity)
		return nil
	})
	return count, err
}
