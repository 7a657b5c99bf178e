// Package store is the durable progress-tracking layer of the crawler: a
// SQLite database holding discovered follower identifiers, their profile
// snapshots, and the singleton crawl checkpoint. One store tracks exactly
// one account, and one process may hold a store at a time.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"followcrawl/pkg/logger"
)

// Status is the fetch state of a follower record. A record never regresses
// from a terminal profile status back to discovered.
type Status string

const (
	// StatusDiscovered means the identifier appeared in a follower-list
	// page but its profile has not been fetched yet.
	StatusDiscovered Status = "discovered"
	// StatusProfileFetched means the profile snapshot is stored.
	StatusProfileFetched Status = "profile_fetched"
	// StatusProfileFailed means the account was gone when its profile was
	// fetched (deleted or suspended).
	StatusProfileFailed Status = "profile_failed"
)

// ErrAccountMismatch is returned when a store created for one account is
// opened for another.
var ErrAccountMismatch = errors.New("store tracks a different account")

// Store is a durable follower store backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	lock   *processLock
	logger logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS followers (
	id              TEXT PRIMARY KEY,
	screen_name     TEXT NOT NULL DEFAULT '',
	display_name    TEXT NOT NULL DEFAULT '',
	bio             TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	followers_count INTEGER NOT NULL DEFAULT 0,
	friends_count   INTEGER NOT NULL DEFAULT 0,
	statuses_count  INTEGER NOT NULL DEFAULT 0,
	verified        BOOLEAN NOT NULL DEFAULT 0,
	protected       BOOLEAN NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'discovered',
	last_fetched_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_followers_status ON followers(status);

CREATE TABLE IF NOT EXISTS checkpoint (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	cursor       TEXT NOT NULL DEFAULT '',
	listing_done BOOLEAN NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if necessary) the store at path for the given
// account. It acquires an exclusive process lock held until Close; a second
// process opening the same store fails immediately rather than risking
// interleaved checkpoint writes.
func Open(path, account string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// Single-writer discipline: all writes are serialized through one
	// connection. SQLite would serialize them anyway, this avoids
	// SQLITE_BUSY churn from the enrichment workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		lock.release()
		return nil, fmt.Errorf("store: set sqlite WAL: %w", err)
	}

	// Checkpoint durability depends on commits reaching disk before the
	// next page is fetched.
	if _, err := db.Exec(`PRAGMA synchronous = FULL;`); err != nil {
		db.Close()
		lock.release()
		return nil, fmt.Errorf("store: set sqlite synchronous: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		lock.release()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		lock:   lock,
		logger: log,
	}

	if err := s.bindAccount(account); err != nil {
		db.Close()
		lock.release()
		return nil, err
	}

	return s, nil
}

// OpenExisting opens a store for inspection without taking the process lock
// or binding an account. Safe to run alongside a crawl: WAL mode lets
// readers proceed while the crawl writes.
func OpenExisting(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{
		db:     db,
		path:   path,
		logger: log,
	}, nil
}

// bindAccount records the tracked account on first open and rejects any
// later open for a different account.
func (s *Store) bindAccount(account string) error {
	var existing string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'account'`).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES ('account', ?)`, account); err != nil {
			return fmt.Errorf("store: record account: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: read account: %w", err)
	case existing != account:
		return fmt.Errorf("%w: store has %q, requested %q", ErrAccountMismatch, existing, account)
	default:
		return nil
	}
}

// Account returns the account this store tracks.
func (s *Store) Account() (string, error) {
	var account string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'account'`).Scan(&account); err != nil {
		return "", fmt.Errorf("store: read account: %w", err)
	}
	return account, nil
}

// Close releases the process lock and closes the database.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if lockErr := s.lock.release(); lockErr != nil && err == nil {
			err = lockErr
		}
	}
	return err
}
