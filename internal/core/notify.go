package core

import (
	"context"
	"fmt"

	"dispatchbook/pkg/domain"
)

// NotificationRecorder subscribes to store commits and records audit
// notifications for ride and driver mutations. Reset and restore transactions
// write their own summary notification, so change sets containing a clear are
// skipped; notification and backup changes are ignored to keep the recorder
// from feeding itself.
type NotificationRecorder struct {
	store  PersistentStore
	logger Logger
	clock  Clock
}

// NewNotificationRecorder wires a recorder over the given store.
func NewNotificationRecorder(store PersistentStore, logger Logger, clock Clock) *NotificationRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &NotificationRecorder{store: store, logger: logger, clock: clock}
}

// Observe implements domain.ChangeObserver.
func (r *NotificationRecorder) Observe(ctx context.Context, changes []Change) {
	for _, change := range changes {
		if change.Action == ActionClear {
			return
		}
	}
	pending := make([]Notification, 0, len(changes))
	for _, change := range changes {
		if n, ok := r.describe(change); ok {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return
	}
	_, err := r.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, n := range pending {
			if _, err := tx.CreateNotification(n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to record notifications", "error", err)
	}
}

func (r *NotificationRecorder) describe(change Change) (Notification, bool) {
	switch change.Entity {
	case EntityRide:
		return r.describeRide(change)
	case EntityDriver:
		return r.describeDriver(change)
	default:
		return Notification{}, false
	}
}

func (r *NotificationRecorder) describeRide(change Change) (Notification, bool) {
	n := Notification{Timestamp: r.clock.Now()}
	switch change.Action {
	case ActionCreate:
		ride, ok := change.After.(domain.Ride)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Ride added"
		n.Message = fmt.Sprintf("Ride for %s in %s recorded", ride.DriverName, ride.Neighborhood)
		n.Severity = SeveritySuccess
	case ActionUpdate:
		ride, ok := change.After.(domain.Ride)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Ride updated"
		n.Message = fmt.Sprintf("Ride #%d for %s updated", ride.ID, ride.DriverName)
		n.Severity = SeverityInfo
	case ActionDelete:
		ride, ok := change.Before.(domain.Ride)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Ride deleted"
		n.Message = fmt.Sprintf("Ride #%d for %s removed", ride.ID, ride.DriverName)
		n.Severity = SeverityWarning
	default:
		return Notification{}, false
	}
	return n, true
}

func (r *NotificationRecorder) describeDriver(change Change) (Notification, bool) {
	n := Notification{Timestamp: r.clock.Now()}
	switch change.Action {
	case ActionCreate:
		driver, ok := change.After.(domain.Driver)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Driver registered"
		n.Message = fmt.Sprintf("Driver %s joined the roster", driver.Name)
		n.Severity = SeveritySuccess
	case ActionUpdate:
		driver, ok := change.After.(domain.Driver)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Driver updated"
		n.Message = fmt.Sprintf("Driver %s updated (status %s)", driver.Name, driver.Status)
		n.Severity = SeverityInfo
	case ActionDelete:
		driver, ok := change.Before.(domain.Driver)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Driver removed"
		n.Message = fmt.Sprintf("Driver %s left the roster", driver.Name)
		n.Severity = SeverityWarning
	default:
		return Notification{}, false
	}
	return n, true
}
