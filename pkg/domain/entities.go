// Package domain defines the persistent entities, value types, error kinds, and
// rule evaluation primitives used by dispatchbook.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityRide identifies a recorded ride.
	EntityRide EntityType = "ride"
	// EntityDriver identifies a driver record.
	EntityDriver EntityType = "driver"
	// EntityPrice identifies a per-neighborhood price row.
	EntityPrice EntityType = "price"
	// EntitySetting identifies a configuration key/value row.
	EntitySetting EntityType = "setting"
	// EntityLedgerEntry identifies a financial ledger entry.
	EntityLedgerEntry EntityType = "ledger_entry"
	// EntityNotification identifies a user-facing notification record.
	EntityNotification EntityType = "notification"
	// EntityBackup identifies a stored full-state backup.
	EntityBackup EntityType = "backup"
)

// DriverStatus enumerates the canonical driver availability states.
type DriverStatus string

// Canonical driver statuses.
const (
	DriverStatusActive   DriverStatus = "active"
	DriverStatusInactive DriverStatus = "inactive"
	DriverStatusOnLeave  DriverStatus = "on_leave"
)

// LedgerKind distinguishes revenue from expense entries.
type LedgerKind string

// Canonical ledger entry kinds.
const (
	LedgerRevenue LedgerKind = "revenue"
	LedgerExpense LedgerKind = "expense"
)

// NotificationSeverity classifies notifications for display purposes.
type NotificationSeverity string

// Canonical notification severities.
const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

// Base contains common fields for records with generated integer keys.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ride records a single completed trip. DriverName is a soft reference to a
// Driver record: it is not enforced at write time and dangling names are
// surfaced by the consistency checker instead.
type Ride struct {
	Base
	DriverName   string    `json:"driver_name"`
	Neighborhood string    `json:"neighborhood"`
	Passenger    string    `json:"passenger"`
	Amount       float64   `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
	Notes        string    `json:"notes,omitempty"`
}

// Driver represents a registered driver. Name is unique across live drivers.
type Driver struct {
	Base
	Name   string       `json:"name"`
	Phone  string       `json:"phone,omitempty"`
	Email  string       `json:"email,omitempty"`
	TaxID  string       `json:"tax_id,omitempty"`
	Status DriverStatus `json:"status"`
}

// NeighborhoodPrice holds the configured fare for one neighborhood. The
// neighborhood name is the primary key.
type NeighborhoodPrice struct {
	Neighborhood string    `json:"neighborhood"`
	Amount       float64   `json:"amount"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Setting is a flat configuration row keyed by name.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is a manually entered financial transaction, independent of
// rides. It serializes under the "transactions" key in backup documents.
type LedgerEntry struct {
	Base
	Kind        LedgerKind `json:"kind"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	Date        time.Time  `json:"date"`
	Notes       string     `json:"notes,omitempty"`
}

// Notification is a user-facing audit record emitted after mutating
// operations. Read state is toggled independently of creation.
type Notification struct {
	Base
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Severity  NotificationSeverity `json:"severity"`
	Read      bool                 `json:"read"`
	Timestamp time.Time            `json:"timestamp"`
}

// Backup stores a full point-in-time snapshot document of every other
// collection. Immutable once created except for deletion.
type Backup struct {
	Base
	SchemaVersion int              `json:"schema_version"`
	SizeBytes     int64            `json:"size_bytes"`
	Payload       SnapshotDocument `json:"payload"`
}

// SchemaVersion is the current backup document schema version. Migrations are
// additive: documents with older versions load with missing collections empty.
const SchemaVersion = 3

// SnapshotDocument is the interchange format for backup export/import. The
// field set and JSON keys are the bit-exact contract for interoperability
// between instances; ledger entries travel under "transactions".
type SnapshotDocument struct {
	Rides         []Ride              `json:"rides"`
	Drivers       []Driver            `json:"drivers"`
	Settings      []Setting           `json:"settings"`
	Prices        []NeighborhoodPrice `json:"prices"`
	Transactions  []LedgerEntry       `json:"transactions"`
	Notifications []Notification      `json:"notifications"`
	SchemaVersion int                 `json:"schemaVersion"`
	ExportedAt    time.Time           `json:"exportedAt"`
	SizeBytes     int64               `json:"sizeBytes"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured for observers.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionClear indicates a whole collection was emptied.
	ActionClear Action = "clear"
)
