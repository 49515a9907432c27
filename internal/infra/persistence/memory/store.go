// Package memory provides the transactional in-memory implementation of the
// dispatchbook persistence store. Durable backends embed it and snapshot its
// state after each commit.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"dispatchbook/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Ride aliases domain.Ride for in-memory persistence operations.
	Ride = domain.Ride
	// Driver aliases domain.Driver.
	Driver = domain.Driver
	// NeighborhoodPrice aliases domain.NeighborhoodPrice.
	NeighborhoodPrice = domain.NeighborhoodPrice
	// Setting aliases domain.Setting.
	Setting = domain.Setting
	// LedgerEntry aliases domain.LedgerEntry.
	LedgerEntry = domain.LedgerEntry
	// Notification aliases domain.Notification.
	Notification = domain.Notification
	// Backup aliases domain.Backup.
	Backup = domain.Backup
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// EntityType aliases domain.EntityType.
	EntityType = domain.EntityType
)

type memoryState struct {
	rides         map[int64]Ride
	drivers       map[int64]Driver
	prices        map[string]NeighborhoodPrice
	settings      map[string]Setting
	ledger        map[int64]LedgerEntry
	notifications map[int64]Notification
	backups       map[int64]Backup
	seqs          map[EntityType]int64
}

// Snapshot captures a point-in-time clone of the full store state, including
// key sequences. It is the unit durable backends persist and reload.
type Snapshot struct {
	Rides         map[int64]Ride               `json:"rides"`
	Drivers       map[int64]Driver             `json:"drivers"`
	Prices        map[string]NeighborhoodPrice `json:"prices"`
	Settings      map[string]Setting           `json:"settings"`
	Ledger        map[int64]LedgerEntry        `json:"ledger"`
	Notifications map[int64]Notification       `json:"notifications"`
	Backups       map[int64]Backup             `json:"backups"`
	Sequences     map[EntityType]int64         `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		rides:         make(map[int64]Ride),
		drivers:       make(map[int64]Driver),
		prices:        make(map[string]NeighborhoodPrice),
		settings:      make(map[string]Setting),
		ledger:        make(map[int64]LedgerEntry),
		notifications: make(map[int64]Notification),
		backups:       make(map[int64]Backup),
		seqs:          make(map[EntityType]int64),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.rides {
		cloned.rides[k] = v
	}
	for k, v := range s.drivers {
		cloned.drivers[k] = v
	}
	for k, v := range s.prices {
		cloned.prices[k] = v
	}
	for k, v := range s.settings {
		cloned.settings[k] = v
	}
	for k, v := range s.ledger {
		cloned.ledger[k] = v
	}
	for k, v := range s.notifications {
		cloned.notifications[k] = v
	}
	for k, v := range s.backups {
		cloned.backups[k] = cloneBackup(v)
	}
	for k, v := range s.seqs {
		cloned.seqs[k] = v
	}
	return cloned
}

// cloneBackup deep-copies the embedded snapshot document; every other entity
// is a plain value type.
func cloneBackup(b Backup) Backup {
	cp := b
	cp.Payload = cloneDocument(b.Payload)
	return cp
}

func cloneDocument(doc domain.SnapshotDocument) domain.SnapshotDocument {
	cp := doc
	cp.Rides = append([]Ride(nil), doc.Rides...)
	cp.Drivers = append([]Driver(nil), doc.Drivers...)
	cp.Settings = append([]Setting(nil), doc.Settings...)
	cp.Prices = append([]NeighborhoodPrice(nil), doc.Prices...)
	cp.Transactions = append([]LedgerEntry(nil), doc.Transactions...)
	cp.Notifications = append([]Notification(nil), doc.Notifications...)
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Rides:         make(map[int64]Ride, len(state.rides)),
		Drivers:       make(map[int64]Driver, len(state.drivers)),
		Prices:        make(map[string]NeighborhoodPrice, len(state.prices)),
		Settings:      make(map[string]Setting, len(state.settings)),
		Ledger:        make(map[int64]LedgerEntry, len(state.ledger)),
		Notifications: make(map[int64]Notification, len(state.notifications)),
		Backups:       make(map[int64]Backup, len(state.backups)),
		Sequences:     make(map[EntityType]int64, len(state.seqs)),
	}
	for k, v := range state.rides {
		s.Rides[k] = v
	}
	for k, v := range state.drivers {
		s.Drivers[k] = v
	}
	for k, v := range state.prices {
		s.Prices[k] = v
	}
	for k, v := range state.settings {
		s.Settings[k] = v
	}
	for k, v := range state.ledger {
		s.Ledger[k] = v
	}
	for k, v := range state.notifications {
		s.Notifications[k] = v
	}
	for k, v := range state.backups {
		s.Backups[k] = cloneBackup(v)
	}
	for k, v := range state.seqs {
		s.Sequences[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Rides {
		state.rides[k] = v
	}
	for k, v := range s.Drivers {
		state.drivers[k] = v
	}
	for k, v := range s.Prices {
		state.prices[k] = v
	}
	for k, v := range s.Settings {
		state.settings[k] = v
	}
	for k, v := range s.Ledger {
		state.ledger[k] = v
	}
	for k, v := range s.Notifications {
		state.notifications[k] = v
	}
	for k, v := range s.Backups {
		state.backups[k] = cloneBackup(v)
	}
	for k, v := range s.Sequences {
		state.seqs[k] = v
	}
	return state
}

// migrateSnapshot normalizes snapshots written by older schema versions:
// missing collections become empty, blank driver statuses default to active,
// and key sequences are advanced past the highest live ID so future inserts
// never collide with restored records.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Rides == nil {
		snapshot.Rides = map[int64]Ride{}
	}
	if snapshot.Drivers == nil {
		snapshot.Drivers = map[int64]Driver{}
	}
	if snapshot.Prices == nil {
		snapshot.Prices = map[string]NeighborhoodPrice{}
	}
	if snapshot.Settings == nil {
		snapshot.Settings = map[string]Setting{}
	}
	if snapshot.Ledger == nil {
		snapshot.Ledger = map[int64]LedgerEntry{}
	}
	if snapshot.Notifications == nil {
		snapshot.Notifications = map[int64]Notification{}
	}
	if snapshot.Backups == nil {
		snapshot.Backups = map[int64]Backup{}
	}
	if snapshot.Sequences == nil {
		snapshot.Sequences = map[EntityType]int64{}
	}

	for id, driver := range snapshot.Drivers {
		if driver.Status == "" {
			driver.Status = domain.DriverStatusActive
		}
		snapshot.Drivers[id] = driver
	}

	bump := func(entity EntityType, id int64) {
		if snapshot.Sequences[entity] < id {
			snapshot.Sequences[entity] = id
		}
	}
	for id := range snapshot.Rides {
		bump(domain.EntityRide, id)
	}
	for id := range snapshot.Drivers {
		bump(domain.EntityDriver, id)
	}
	for id := range snapshot.Ledger {
		bump(domain.EntityLedgerEntry, id)
	}
	for id := range snapshot.Notifications {
		bump(domain.EntityNotification, id)
	}
	for id := range snapshot.Backups {
		bump(domain.EntityBackup, id)
	}
	return snapshot
}

// Store provides an in-memory transactional store for the dispatch domain.
type Store struct {
	mu        sync.RWMutex
	state     memoryState
	engine    *RulesEngine
	nowFn     func() time.Time
	observers []domain.ChangeObserver
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the transaction clock. Intended for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// Subscribe registers a change observer invoked after each successful commit.
func (s *Store) Subscribe(observer domain.ChangeObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// ImportState replaces the current state with the provided snapshot after
// migration. Used by durable backends on load.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// ExportState returns a deep copy of the current state for durable backends.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// Close releases no resources for the in-memory store.
func (s *Store) Close() error { return nil }

// transaction applies a mutation set to a cloned state and records changes.
type transaction struct {
	store *Store
	state memoryState
	view
	changes []Change
	now     time.Time
}

// view implements domain.TransactionView over a memoryState.
type view struct {
	state *memoryState
}

// RunInTransaction executes fn within a transactional copy of the store
// state. On success the clone replaces the committed state, registered rules
// are evaluated advisorily, and observers receive the change set.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	tx.view = view{state: &tx.state}

	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.view, tx.changes)
		if err != nil {
			s.mu.Unlock()
			return Result{}, err
		}
		result = res
	}

	s.state = tx.state
	observers := append([]domain.ChangeObserver(nil), s.observers...)
	changes := append([]Change(nil), tx.changes...)
	s.mu.Unlock()

	for _, observer := range observers {
		observer(ctx, changes)
	}
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) nextID(entity EntityType) int64 {
	tx.state.seqs[entity]++
	return tx.state.seqs[entity]
}

// bumpSeq keeps the sequence ahead of explicitly supplied IDs (restore path).
func (tx *transaction) bumpSeq(entity EntityType, id int64) {
	if tx.state.seqs[entity] < id {
		tx.state.seqs[entity] = id
	}
}

// stamp assigns creation metadata, preserving timestamps already present so
// restores reproduce records field-for-field.
func (tx *transaction) stamp(base *domain.Base, entity EntityType) {
	if base.ID == 0 {
		base.ID = tx.nextID(entity)
	} else {
		tx.bumpSeq(entity, base.ID)
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = tx.now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = base.CreatedAt
	}
}

// Rides -----------------------------------------------------------------------

// CreateRide stores a new ride within the transaction.
func (tx *transaction) CreateRide(r Ride) (Ride, error) {
	if r.Amount < 0 {
		return Ride{}, domain.ValidationError{Entity: domain.EntityRide, Field: "amount", Message: "must not be negative"}
	}
	if strings.TrimSpace(r.DriverName) == "" {
		return Ride{}, domain.ValidationError{Entity: domain.EntityRide, Field: "driver_name", Message: "required"}
	}
	if _, exists := tx.state.rides[r.ID]; exists {
		return Ride{}, domain.DuplicateKeyError{Entity: domain.EntityRide, Key: formatID(r.ID)}
	}
	tx.stamp(&r.Base, domain.EntityRide)
	if r.Timestamp.IsZero() {
		r.Timestamp = tx.now
	}
	tx.state.rides[r.ID] = r
	tx.recordChange(Change{Entity: domain.EntityRide, Action: domain.ActionCreate, After: r})
	return r, nil
}

// UpdateRide mutates a ride using the provided mutator function.
func (tx *transaction) UpdateRide(id int64, mutator func(*Ride) error) (Ride, error) {
	current, ok := tx.state.rides[id]
	if !ok {
		return Ride{}, domain.NotFoundError{Entity: domain.EntityRide, Key: formatID(id)}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Ride{}, err
	}
	if current.Amount < 0 {
		return Ride{}, domain.ValidationError{Entity: domain.EntityRide, Field: "amount", Message: "must not be negative"}
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.rides[id] = current
	tx.recordChange(Change{Entity: domain.EntityRide, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteRide removes a ride, reporting whether it existed.
func (tx *transaction) DeleteRide(id int64) bool {
	current, ok := tx.state.rides[id]
	if !ok {
		return false
	}
	delete(tx.state.rides, id)
	tx.recordChange(Change{Entity: domain.EntityRide, Action: domain.ActionDelete, Before: current})
	return true
}

// Drivers ---------------------------------------------------------------------

// CreateDriver stores a new driver, enforcing name uniqueness.
func (tx *transaction) CreateDriver(d Driver) (Driver, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return Driver{}, domain.ValidationError{Entity: domain.EntityDriver, Field: "name", Message: "required"}
	}
	if d.Status == "" {
		d.Status = domain.DriverStatusActive
	}
	if !validDriverStatus(d.Status) {
		return Driver{}, domain.ValidationError{Entity: domain.EntityDriver, Field: "status", Message: "unknown status " + string(d.Status)}
	}
	if _, exists := tx.state.drivers[d.ID]; exists {
		return Driver{}, domain.DuplicateKeyError{Entity: domain.EntityDriver, Key: formatID(d.ID)}
	}
	for _, existing := range tx.state.drivers {
		if strings.EqualFold(existing.Name, d.Name) {
			return Driver{}, domain.DuplicateKeyError{Entity: domain.EntityDriver, Key: d.Name}
		}
	}
	tx.stamp(&d.Base, domain.EntityDriver)
	tx.state.drivers[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityDriver, Action: domain.ActionCreate, After: d})
	return d, nil
}

// UpdateDriver mutates a driver and re-validates the uniqueness constraint.
func (tx *transaction) UpdateDriver(id int64, mutator func(*Driver) error) (Driver, error) {
	current, ok := tx.state.drivers[id]
	if !ok {
		return Driver{}, domain.NotFoundError{Entity: domain.EntityDriver, Key: formatID(id)}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Driver{}, err
	}
	current.Name = strings.TrimSpace(current.Name)
	if current.Name == "" {
		return Driver{}, domain.ValidationError{Entity: domain.EntityDriver, Field: "name", Message: "required"}
	}
	if !validDriverStatus(current.Status) {
		return Driver{}, domain.ValidationError{Entity: domain.EntityDriver, Field: "status", Message: "unknown status " + string(current.Status)}
	}
	for otherID, existing := range tx.state.drivers {
		if otherID != id && strings.EqualFold(existing.Name, current.Name) {
			return Driver{}, domain.DuplicateKeyError{Entity: domain.EntityDriver, Key: current.Name}
		}
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.drivers[id] = current
	tx.recordChange(Change{Entity: domain.EntityDriver, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteDriver removes a driver, reporting whether it existed.
func (tx *transaction) DeleteDriver(id int64) bool {
	current, ok := tx.state.drivers[id]
	if !ok {
		return false
	}
	delete(tx.state.drivers, id)
	tx.recordChange(Change{Entity: domain.EntityDriver, Action: domain.ActionDelete, Before: current})
	return true
}

func validDriverStatus(status domain.DriverStatus) bool {
	switch status {
	case domain.DriverStatusActive, domain.DriverStatusInactive, domain.DriverStatusOnLeave:
		return true
	}
	return false
}

// Prices ----------------------------------------------------------------------

// PutPrice upserts the configured fare for one neighborhood.
func (tx *transaction) PutPrice(p NeighborhoodPrice) (NeighborhoodPrice, error) {
	p.Neighborhood = strings.TrimSpace(p.Neighborhood)
	if p.Neighborhood == "" {
		return NeighborhoodPrice{}, domain.ValidationError{Entity: domain.EntityPrice, Field: "neighborhood", Message: "required"}
	}
	if p.Amount < 0 {
		return NeighborhoodPrice{}, domain.ValidationError{Entity: domain.EntityPrice, Field: "amount", Message: "must not be negative"}
	}
	before, existed := tx.state.prices[p.Neighborhood]
	p.UpdatedAt = tx.now
	tx.state.prices[p.Neighborhood] = p
	change := Change{Entity: domain.EntityPrice, Action: domain.ActionCreate, After: p}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.recordChange(change)
	return p, nil
}

// DeletePrice removes a neighborhood price row, reporting whether it existed.
func (tx *transaction) DeletePrice(neighborhood string) bool {
	current, ok := tx.state.prices[neighborhood]
	if !ok {
		return false
	}
	delete(tx.state.prices, neighborhood)
	tx.recordChange(Change{Entity: domain.EntityPrice, Action: domain.ActionDelete, Before: current})
	return true
}

// Settings --------------------------------------------------------------------

// PutSetting upserts a configuration row.
func (tx *transaction) PutSetting(s Setting) (Setting, error) {
	s.Key = strings.TrimSpace(s.Key)
	if s.Key == "" {
		return Setting{}, domain.ValidationError{Entity: domain.EntitySetting, Field: "key", Message: "required"}
	}
	before, existed := tx.state.settings[s.Key]
	s.UpdatedAt = tx.now
	tx.state.settings[s.Key] = s
	change := Change{Entity: domain.EntitySetting, Action: domain.ActionCreate, After: s}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.recordChange(change)
	return s, nil
}

// DeleteSetting removes a configuration row, reporting whether it existed.
func (tx *transaction) DeleteSetting(key string) bool {
	current, ok := tx.state.settings[key]
	if !ok {
		return false
	}
	delete(tx.state.settings, key)
	tx.recordChange(Change{Entity: domain.EntitySetting, Action: domain.ActionDelete, Before: current})
	return true
}

// Ledger ----------------------------------------------------------------------

// CreateLedgerEntry stores a financial transaction record.
func (tx *transaction) CreateLedgerEntry(e LedgerEntry) (LedgerEntry, error) {
	if e.Kind != domain.LedgerRevenue && e.Kind != domain.LedgerExpense {
		return LedgerEntry{}, domain.ValidationError{Entity: domain.EntityLedgerEntry, Field: "kind", Message: "must be revenue or expense"}
	}
	if e.Amount < 0 {
		return LedgerEntry{}, domain.ValidationError{Entity: domain.EntityLedgerEntry, Field: "amount", Message: "must not be negative"}
	}
	if _, exists := tx.state.ledger[e.ID]; exists {
		return LedgerEntry{}, domain.DuplicateKeyError{Entity: domain.EntityLedgerEntry, Key: formatID(e.ID)}
	}
	tx.stamp(&e.Base, domain.EntityLedgerEntry)
	if e.Date.IsZero() {
		e.Date = tx.now
	}
	tx.state.ledger[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityLedgerEntry, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateLedgerEntry mutates a ledger entry.
func (tx *transaction) UpdateLedgerEntry(id int64, mutator func(*LedgerEntry) error) (LedgerEntry, error) {
	current, ok := tx.state.ledger[id]
	if !ok {
		return LedgerEntry{}, domain.NotFoundError{Entity: domain.EntityLedgerEntry, Key: formatID(id)}
	}
	before := current
	if err := mutator(&current); err != nil {
		return LedgerEntry{}, err
	}
	if current.Kind != domain.LedgerRevenue && current.Kind != domain.LedgerExpense {
		return LedgerEntry{}, domain.ValidationError{Entity: domain.EntityLedgerEntry, Field: "kind", Message: "must be revenue or expense"}
	}
	if current.Amount < 0 {
		return LedgerEntry{}, domain.ValidationError{Entity: domain.EntityLedgerEntry, Field: "amount", Message: "must not be negative"}
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.ledger[id] = current
	tx.recordChange(Change{Entity: domain.EntityLedgerEntry, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteLedgerEntry removes a ledger entry, reporting whether it existed.
func (tx *transaction) DeleteLedgerEntry(id int64) bool {
	current, ok := tx.state.ledger[id]
	if !ok {
		return false
	}
	delete(tx.state.ledger, id)
	tx.recordChange(Change{Entity: domain.EntityLedgerEntry, Action: domain.ActionDelete, Before: current})
	return true
}

// Notifications ---------------------------------------------------------------

// CreateNotification stores a notification record.
func (tx *transaction) CreateNotification(n Notification) (Notification, error) {
	if n.Severity == "" {
		n.Severity = domain.SeverityInfo
	}
	if !validSeverity(n.Severity) {
		return Notification{}, domain.ValidationError{Entity: domain.EntityNotification, Field: "severity", Message: "unknown severity " + string(n.Severity)}
	}
	if _, exists := tx.state.notifications[n.ID]; exists {
		return Notification{}, domain.DuplicateKeyError{Entity: domain.EntityNotification, Key: formatID(n.ID)}
	}
	tx.stamp(&n.Base, domain.EntityNotification)
	if n.Timestamp.IsZero() {
		n.Timestamp = tx.now
	}
	tx.state.notifications[n.ID] = n
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionCreate, After: n})
	return n, nil
}

// UpdateNotification mutates a notification (read/unread toggling).
func (tx *transaction) UpdateNotification(id int64, mutator func(*Notification) error) (Notification, error) {
	current, ok := tx.state.notifications[id]
	if !ok {
		return Notification{}, domain.NotFoundError{Entity: domain.EntityNotification, Key: formatID(id)}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Notification{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.notifications[id] = current
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteNotification removes a notification, reporting whether it existed.
func (tx *transaction) DeleteNotification(id int64) bool {
	current, ok := tx.state.notifications[id]
	if !ok {
		return false
	}
	delete(tx.state.notifications, id)
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionDelete, Before: current})
	return true
}

func validSeverity(severity domain.NotificationSeverity) bool {
	switch severity {
	case domain.SeverityInfo, domain.SeveritySuccess, domain.SeverityWarning, domain.SeverityError:
		return true
	}
	return false
}

// Backups ---------------------------------------------------------------------

// CreateBackup stores a backup record. Backups are immutable once created:
// no update operation exists for them.
func (tx *transaction) CreateBackup(b Backup) (Backup, error) {
	if _, exists := tx.state.backups[b.ID]; exists {
		return Backup{}, domain.DuplicateKeyError{Entity: domain.EntityBackup, Key: formatID(b.ID)}
	}
	tx.stamp(&b.Base, domain.EntityBackup)
	stored := cloneBackup(b)
	tx.state.backups[b.ID] = stored
	tx.recordChange(Change{Entity: domain.EntityBackup, Action: domain.ActionCreate, After: stored})
	return cloneBackup(stored), nil
}

// DeleteBackup removes a backup, reporting whether it existed.
func (tx *transaction) DeleteBackup(id int64) bool {
	current, ok := tx.state.backups[id]
	if !ok {
		return false
	}
	delete(tx.state.backups, id)
	tx.recordChange(Change{Entity: domain.EntityBackup, Action: domain.ActionDelete, Before: current})
	return true
}

// Clear -----------------------------------------------------------------------

// Clear empties a collection unconditionally and returns the removed count.
func (tx *transaction) Clear(entity EntityType) int {
	var removed int
	switch entity {
	case domain.EntityRide:
		removed = len(tx.state.rides)
		tx.state.rides = make(map[int64]Ride)
	case domain.EntityDriver:
		removed = len(tx.state.drivers)
		tx.state.drivers = make(map[int64]Driver)
	case domain.EntityPrice:
		removed = len(tx.state.prices)
		tx.state.prices = make(map[string]NeighborhoodPrice)
	case domain.EntitySetting:
		removed = len(tx.state.settings)
		tx.state.settings = make(map[string]Setting)
	case domain.EntityLedgerEntry:
		removed = len(tx.state.ledger)
		tx.state.ledger = make(map[int64]LedgerEntry)
	case domain.EntityNotification:
		removed = len(tx.state.notifications)
		tx.state.notifications = make(map[int64]Notification)
	case domain.EntityBackup:
		removed = len(tx.state.backups)
		tx.state.backups = make(map[int64]Backup)
	}
	if removed > 0 {
		tx.recordChange(Change{Entity: entity, Action: domain.ActionClear, Before: removed})
	}
	return removed
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Read helpers ---------------------------------------------------------------

// FindRide retrieves a ride by ID from the snapshot.
func (v view) FindRide(id int64) (Ride, bool) {
	r, ok := v.state.rides[id]
	return r, ok
}

// ListRides returns all rides ordered newest first; ties keep insertion order.
func (v view) ListRides() []Ride {
	out := make([]Ride, 0, len(v.state.rides))
	for _, r := range v.state.rides {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// FindDriver retrieves a driver by ID from the snapshot.
func (v view) FindDriver(id int64) (Driver, bool) {
	d, ok := v.state.drivers[id]
	return d, ok
}

// FindDriverByName retrieves a driver by case-insensitive name match.
func (v view) FindDriverByName(name string) (Driver, bool) {
	for _, d := range v.state.drivers {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d, true
		}
	}
	return Driver{}, false
}

// ListDrivers returns all drivers ordered by name.
func (v view) ListDrivers() []Driver {
	out := make([]Driver, 0, len(v.state.drivers))
	for _, d := range v.state.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FindPrice retrieves the configured price for a neighborhood.
func (v view) FindPrice(neighborhood string) (NeighborhoodPrice, bool) {
	p, ok := v.state.prices[neighborhood]
	return p, ok
}

// ListPrices returns all configured prices ordered by neighborhood.
func (v view) ListPrices() []NeighborhoodPrice {
	out := make([]NeighborhoodPrice, 0, len(v.state.prices))
	for _, p := range v.state.prices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Neighborhood < out[j].Neighborhood })
	return out
}

// FindSetting retrieves a configuration row.
func (v view) FindSetting(key string) (Setting, bool) {
	s, ok := v.state.settings[key]
	return s, ok
}

// ListSettings returns all configuration rows ordered by key.
func (v view) ListSettings() []Setting {
	out := make([]Setting, 0, len(v.state.settings))
	for _, s := range v.state.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// FindLedgerEntry retrieves a ledger entry by ID.
func (v view) FindLedgerEntry(id int64) (LedgerEntry, bool) {
	e, ok := v.state.ledger[id]
	return e, ok
}

// ListLedgerEntries returns all entries ordered by date, newest first.
func (v view) ListLedgerEntries() []LedgerEntry {
	out := make([]LedgerEntry, 0, len(v.state.ledger))
	for _, e := range v.state.ledger {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// FindNotification retrieves a notification by ID.
func (v view) FindNotification(id int64) (Notification, bool) {
	n, ok := v.state.notifications[id]
	return n, ok
}

// ListNotifications returns all notifications, newest first.
func (v view) ListNotifications() []Notification {
	out := make([]Notification, 0, len(v.state.notifications))
	for _, n := range v.state.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// FindBackup retrieves a backup by ID.
func (v view) FindBackup(id int64) (Backup, bool) {
	b, ok := v.state.backups[id]
	if !ok {
		return Backup{}, false
	}
	return cloneBackup(b), true
}

// ListBackups returns all backups, newest first.
func (v view) ListBackups() []Backup {
	out := make([]Backup, 0, len(v.state.backups))
	for _, b := range v.state.backups {
		out = append(out, cloneBackup(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Count returns the number of records in a collection.
func (v view) Count(entity EntityType) int {
	switch entity {
	case domain.EntityRide:
		return len(v.state.rides)
	case domain.EntityDriver:
		return len(v.state.drivers)
	case domain.EntityPrice:
		return len(v.state.prices)
	case domain.EntitySetting:
		return len(v.state.settings)
	case domain.EntityLedgerEntry:
		return len(v.state.ledger)
	case domain.EntityNotification:
		return len(v.state.notifications)
	case domain.EntityBackup:
		return len(v.state.backups)
	}
	return 0
}

// Committed-state read helpers on the store itself.

// FindRide retrieves a ride by ID from committed state.
func (s *Store) FindRide(id int64) (Ride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindRide(id)
}

// ListRides returns all rides from committed state, newest first.
func (s *Store) ListRides() []Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListRides()
}

// FindDriver retrieves a driver by ID from committed state.
func (s *Store) FindDriver(id int64) (Driver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindDriver(id)
}

// FindDriverByName retrieves a driver by name from committed state.
func (s *Store) FindDriverByName(name string) (Driver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindDriverByName(name)
}

// ListDrivers returns all drivers from committed state, ordered by name.
func (s *Store) ListDrivers() []Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListDrivers()
}

// FindPrice retrieves a neighborhood price from committed state.
func (s *Store) FindPrice(neighborhood string) (NeighborhoodPrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindPrice(neighborhood)
}

// ListPrices returns all neighborhood prices from committed state.
func (s *Store) ListPrices() []NeighborhoodPrice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListPrices()
}

// FindSetting retrieves a configuration row from committed state.
func (s *Store) FindSetting(key string) (Setting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindSetting(key)
}

// ListSettings returns all configuration rows from committed state.
func (s *Store) ListSettings() []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListSettings()
}

// ListLedgerEntries returns all ledger entries from committed state.
func (s *Store) ListLedgerEntries() []LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListLedgerEntries()
}

// ListNotifications returns all notifications from committed state.
func (s *Store) ListNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListNotifications()
}

// FindBackup retrieves a backup from committed state.
func (s *Store) FindBackup(id int64) (Backup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindBackup(id)
}

// ListBackups returns all backups from committed state, newest first.
func (s *Store) ListBackups() []Backup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListBackups()
}

// Count returns the committed record count for a collection.
func (s *Store) Count(entity EntityType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.Count(entity)
}
