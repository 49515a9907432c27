package core

import (
	"context"
	"encoding/json"
	"fmt"

	"dispatchbook/pkg/domain"
)

// ResetScope selects which collections a reset clears.
type ResetScope string

const (
	// ResetRides clears only the ride history.
	ResetRides ResetScope = "rides"
	// ResetDrivers clears only the driver roster.
	ResetDrivers ResetScope = "drivers"
	// ResetEverything clears all live collections and reseeds defaults.
	ResetEverything ResetScope = "everything"
)

// RestoreFailure records one record that could not be reapplied.
type RestoreFailure struct {
	Entity EntityType `json:"entity"`
	Key    string     `json:"key"`
	Reason string     `json:"reason"`
}

// RestoreReport summarizes a best-effort restore or import.
type RestoreReport struct {
	Restored map[EntityType]int `json:"restored"`
	Failures []RestoreFailure   `json:"failures,omitempty"`
}

func (r *RestoreReport) count(entity EntityType) {
	if r.Restored == nil {
		r.Restored = make(map[EntityType]int)
	}
	r.Restored[entity]++
}

func (r *RestoreReport) fail(entity EntityType, key string, err error) {
	r.Failures = append(r.Failures, RestoreFailure{Entity: entity, Key: key, Reason: err.Error()})
}

// Snapshot reads every live collection as a consistent point-in-time document.
// SizeBytes reports the serialized size of the document before the field
// itself is filled in.
func (s *Service) Snapshot(ctx context.Context) (SnapshotDocument, error) {
	doc := SnapshotDocument{SchemaVersion: domain.SchemaVersion, ExportedAt: s.clock.Now().UTC()}
	err := s.store.View(ctx, func(v TransactionView) error {
		doc.Rides = v.ListRides()
		doc.Drivers = v.ListDrivers()
		doc.Settings = v.ListSettings()
		doc.Prices = v.ListPrices()
		doc.Transactions = v.ListLedgerEntries()
		doc.Notifications = v.ListNotifications()
		return nil
	})
	if err != nil {
		return SnapshotDocument{}, err
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return SnapshotDocument{}, fmt.Errorf("encode snapshot: %w", err)
	}
	doc.SizeBytes = int64(len(encoded))
	return doc, nil
}

// ExportSnapshot serializes the current state as the interchange JSON
// document.
func (s *Service) ExportSnapshot(ctx context.Context) ([]byte, error) {
	doc, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// CreateBackup snapshots the current state and persists it as a Backup
// record.
func (s *Service) CreateBackup(ctx context.Context) (Backup, Result, error) {
	doc, err := s.Snapshot(ctx)
	if err != nil {
		return Backup{}, Result{}, err
	}
	var created Backup
	res, err := s.run(ctx, "create_backup", func(tx Transaction) error {
		var err error
		created, err = tx.CreateBackup(Backup{
			SchemaVersion: doc.SchemaVersion,
			SizeBytes:     doc.SizeBytes,
			Payload:       doc,
		})
		return err
	})
	return created, res, err
}

// ListBackups returns stored backups, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]Backup, error) {
	var backups []Backup
	err := s.store.View(ctx, func(v TransactionView) error {
		backups = v.ListBackups()
		return nil
	})
	return backups, err
}

// DeleteBackup removes a stored backup, reporting whether it existed.
func (s *Service) DeleteBackup(ctx context.Context, id int64) (bool, Result, error) {
	var existed bool
	res, err := s.run(ctx, "delete_backup", func(tx Transaction) error {
		existed = tx.DeleteBackup(id)
		return nil
	})
	return existed, res, err
}

// RestoreBackup replaces all live collections with the contents of a stored
// backup. Repopulation is best-effort: records that fail to reapply are
// reported and skipped rather than aborting the restore.
func (s *Service) RestoreBackup(ctx context.Context, id int64) (RestoreReport, Result, error) {
	var report RestoreReport
	res, err := s.run(ctx, "restore_backup", func(tx Transaction) error {
		backup, ok := tx.FindBackup(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityBackup, Key: formatID(id)}
		}
		applySnapshot(tx, backup.Payload, &report)
		_, err := tx.CreateNotification(Notification{
			Title:     "Backup restored",
			Message:   fmt.Sprintf("Restored backup #%d from %s", backup.ID, backup.Payload.ExportedAt.Format("2006-01-02 15:04")),
			Severity:  SeveritySuccess,
			Timestamp: s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return RestoreReport{}, res, err
	}
	if len(report.Failures) > 0 {
		s.logger.Warn("restore completed with failures", "backup_id", id, "failed", len(report.Failures))
	}
	return report, res, err
}

// ImportSnapshot applies an externally supplied snapshot document, replacing
// all live collections. Documents from newer schema versions are rejected.
func (s *Service) ImportSnapshot(ctx context.Context, data []byte) (RestoreReport, Result, error) {
	var doc SnapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RestoreReport{}, Result{}, domain.ValidationError{Entity: EntityBackup, Field: "payload", Message: "malformed snapshot document"}
	}
	if doc.SchemaVersion > domain.SchemaVersion {
		return RestoreReport{}, Result{}, domain.ValidationError{
			Entity:  EntityBackup,
			Field:   "schemaVersion",
			Message: fmt.Sprintf("unsupported schema version %d (current %d)", doc.SchemaVersion, domain.SchemaVersion),
		}
	}
	var report RestoreReport
	res, err := s.run(ctx, "import_snapshot", func(tx Transaction) error {
		applySnapshot(tx, doc, &report)
		_, err := tx.CreateNotification(Notification{
			Title:     "Snapshot imported",
			Message:   fmt.Sprintf("Imported external snapshot (%d rides, %d drivers)", len(doc.Rides), len(doc.Drivers)),
			Severity:  SeveritySuccess,
			Timestamp: s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return RestoreReport{}, res, err
	}
	return report, res, err
}

// applySnapshot clears live collections and repopulates them from doc,
// continuing past individual record failures.
func applySnapshot(tx Transaction, doc SnapshotDocument, report *RestoreReport) {
	for _, entity := range []EntityType{EntityRide, EntityDriver, EntityPrice, EntitySetting, EntityLedgerEntry, EntityNotification} {
		tx.Clear(entity)
	}
	for _, ride := range doc.Rides {
		if _, err := tx.CreateRide(ride); err != nil {
			report.fail(EntityRide, formatID(ride.ID), err)
			continue
		}
		report.count(EntityRide)
	}
	for _, driver := range doc.Drivers {
		if _, err := tx.CreateDriver(driver); err != nil {
			report.fail(EntityDriver, formatID(driver.ID), err)
			continue
		}
		report.count(EntityDriver)
	}
	for _, price := range doc.Prices {
		if _, err := tx.PutPrice(price); err != nil {
			report.fail(EntityPrice, price.Neighborhood, err)
			continue
		}
		report.count(EntityPrice)
	}
	for _, setting := range doc.Settings {
		if _, err := tx.PutSetting(setting); err != nil {
			report.fail(EntitySetting, setting.Key, err)
			continue
		}
		report.count(EntitySetting)
	}
	for _, entry := range doc.Transactions {
		if _, err := tx.CreateLedgerEntry(entry); err != nil {
			report.fail(EntityLedgerEntry, formatID(entry.ID), err)
			continue
		}
		report.count(EntityLedgerEntry)
	}
	for _, notification := range doc.Notifications {
		if _, err := tx.CreateNotification(notification); err != nil {
			report.fail(EntityNotification, formatID(notification.ID), err)
			continue
		}
		report.count(EntityNotification)
	}
}

// ResetAll clears the collections named by scope. The everything scope also
// reseeds the default roster, fare table, and settings.
func (s *Service) ResetAll(ctx context.Context, scope ResetScope) (Result, error) {
	return s.run(ctx, "reset_all", func(tx Transaction) error {
		switch scope {
		case ResetRides:
			tx.Clear(EntityRide)
		case ResetDrivers:
			tx.Clear(EntityDriver)
		case ResetEverything:
			for _, entity := range []EntityType{EntityRide, EntityDriver, EntityPrice, EntitySetting, EntityLedgerEntry, EntityNotification} {
				tx.Clear(entity)
			}
			for _, driver := range DefaultDrivers() {
				if _, err := tx.CreateDriver(driver); err != nil {
					return err
				}
			}
			for neighborhood, amount := range s.defaults {
				if _, err := tx.PutPrice(NeighborhoodPrice{Neighborhood: neighborhood, Amount: amount}); err != nil {
					return err
				}
			}
			for _, setting := range DefaultSettings() {
				if _, err := tx.PutSetting(setting); err != nil {
					return err
				}
			}
		default:
			return domain.ValidationError{Entity: EntityBackup, Field: "scope", Message: fmt.Sprintf("unknown reset scope %q", scope)}
		}
		_, err := tx.CreateNotification(Notification{
			Title:     "Data reset",
			Message:   fmt.Sprintf("Reset scope %q applied", scope),
			Severity:  SeverityWarning,
			Timestamp: s.clock.Now(),
		})
		return err
	})
}
