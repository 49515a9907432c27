// Package sqlite persists the in-memory state to a single SQLite table as
// JSON blobs, snapshotting the full state after every successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dispatchbook/internal/infra/persistence/memory"
	"dispatchbook/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store is the sqlite-backed persistent store. Transactions execute against
// the embedded in-memory store; committed state is then written through.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "dispatchbook.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"rides", "drivers", "prices", "settings", "ledger", "notifications", "backups", "sequences"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	payloads := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		payloads[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(payloads) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	decode := func(bucket string, target any) error {
		payload, ok := payloads[bucket]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		return nil
	}
	if err := decode("rides", &snapshot.Rides); err != nil {
		return err
	}
	if err := decode("drivers", &snapshot.Drivers); err != nil {
		return err
	}
	if err := decode("prices", &snapshot.Prices); err != nil {
		return err
	}
	if err := decode("settings", &snapshot.Settings); err != nil {
		return err
	}
	if err := decode("ledger", &snapshot.Ledger); err != nil {
		return err
	}
	if err := decode("notifications", &snapshot.Notifications); err != nil {
		return err
	}
	if err := decode("backups", &snapshot.Backups); err != nil {
		return err
	}
	if err := decode("sequences", &snapshot.Sequences); err != nil {
		return err
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "rides":
			data, err = json.Marshal(snapshot.Rides)
		case "drivers":
			data, err = json.Marshal(snapshot.Drivers)
		case "prices":
			data, err = json.Marshal(snapshot.Prices)
		case "settings":
			data, err = json.Marshal(snapshot.Settings)
		case "ledger":
			data, err = json.Marshal(snapshot.Ledger)
		case "notifications":
			data, err = json.Marshal(snapshot.Notifications)
		case "backups":
			data, err = json.Marshal(snapshot.Backups)
		case "sequences":
			data, err = json.Marshal(snapshot.Sequences)
		}
		if err != nil {
			retErr = storageErr("encode "+bucket, err)
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = storageErr("upsert "+bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// storageErr wraps a persistence failure, flagging quota exhaustion so the
// service layer can trigger its notification purge and signal a retry.
func storageErr(op string, err error) error {
	return domain.StorageError{Op: op, Quota: isQuotaError(err), Err: err}
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "disk is full") || strings.Contains(msg, "database is full") || strings.Contains(msg, "no space left")
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// Close flushes nothing further and closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
