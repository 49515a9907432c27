// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics, snapshotting full state after each commit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"dispatchbook/internal/infra/persistence/memory"
	"dispatchbook/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/dispatchbook?sslmode=disable"
)

// sqlOpen is swappable for tests.
var sqlOpen = sql.Open

// Store persists state to Postgres while reusing the in-memory implementation
// for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sqlOpen(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS dispatchbook_state (
		bucket TEXT PRIMARY KEY,
		payload BYTEA NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{}
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM dispatchbook_state`)
	if err != nil {
		return snapshot, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snapshot, fmt.Errorf("scan: %w", err)
		}
		var target any
		switch bucket {
		case "rides":
			target = &snapshot.Rides
		case "drivers":
			target = &snapshot.Drivers
		case "prices":
			target = &snapshot.Prices
		case "settings":
			target = &snapshot.Settings
		case "ledger":
			target = &snapshot.Ledger
		case "notifications":
			target = &snapshot.Notifications
		case "backups":
			target = &snapshot.Backups
		case "sequences":
			target = &snapshot.Sequences
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return snapshot, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return snapshot, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	buckets := []struct {
		name  string
		value any
	}{
		{"rides", snapshot.Rides},
		{"drivers", snapshot.Drivers},
		{"prices", snapshot.Prices},
		{"settings", snapshot.Settings},
		{"ledger", snapshot.Ledger},
		{"notifications", snapshot.Notifications},
		{"backups", snapshot.Backups},
		{"sequences", snapshot.Sequences},
	}
	for _, bucket := range buckets {
		data, err := json.Marshal(bucket.value)
		if err != nil {
			retErr = storageErr("encode "+bucket.name, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO dispatchbook_state(bucket, payload) VALUES($1, $2)
			ON CONFLICT (bucket) DO UPDATE SET payload = excluded.payload`, bucket.name, data); err != nil {
			retErr = storageErr("upsert "+bucket.name, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	quota := err != nil && strings.Contains(strings.ToLower(err.Error()), "no space left")
	return domain.StorageError{Op: op, Quota: quota, Err: err}
}

// RunInTransaction applies fn within a transaction, then snapshots to
// Postgres if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }
