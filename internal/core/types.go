// Package core implements the dispatchbook service layer: transactional CRUD
// over the record store, query and statistics helpers, the consistency
// checker, and the backup/restore engine.
package core

import (
	"strconv"

	"dispatchbook/pkg/domain"
)

type (
	EntityType           = domain.EntityType
	DriverStatus         = domain.DriverStatus
	LedgerKind           = domain.LedgerKind
	NotificationSeverity = domain.NotificationSeverity
	Base                 = domain.Base
	Ride                 = domain.Ride
	Driver               = domain.Driver
	NeighborhoodPrice    = domain.NeighborhoodPrice
	Setting              = domain.Setting
	LedgerEntry          = domain.LedgerEntry
	Notification         = domain.Notification
	Backup               = domain.Backup
	SnapshotDocument     = domain.SnapshotDocument
	Change               = domain.Change
	Action               = domain.Action
	Issue                = domain.Issue
	IssueKind            = domain.IssueKind
	Result               = domain.Result
	Rule                 = domain.Rule
	RulesEngine          = domain.RulesEngine
	Transaction          = domain.Transaction
	TransactionView      = domain.TransactionView
	PersistentStore      = domain.PersistentStore
)

const (
	EntityRide         = domain.EntityRide
	EntityDriver       = domain.EntityDriver
	EntityPrice        = domain.EntityPrice
	EntitySetting      = domain.EntitySetting
	EntityLedgerEntry  = domain.EntityLedgerEntry
	EntityNotification = domain.EntityNotification
	EntityBackup       = domain.EntityBackup
)

const (
	DriverStatusActive   = domain.DriverStatusActive
	DriverStatusInactive = domain.DriverStatusInactive
	DriverStatusOnLeave  = domain.DriverStatusOnLeave
)

const (
	LedgerRevenue = domain.LedgerRevenue
	LedgerExpense = domain.LedgerExpense
)

const (
	SeverityInfo    = domain.SeverityInfo
	SeveritySuccess = domain.SeveritySuccess
	SeverityWarning = domain.SeverityWarning
	SeverityError   = domain.SeverityError
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
	ActionClear  = domain.ActionClear
)

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// NewRulesEngine re-exports the domain constructor for callers that assemble
// their own rule set.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewOrphanedRideRule())
	engine.Register(NewDuplicateDriverNameRule())
	engine.Register(NewInvalidPriceRule())
	return engine
}
