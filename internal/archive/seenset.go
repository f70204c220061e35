package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)
)

// SeenSet is the process-external, monotonically growing set of
// "source:id" keys PaperFetcher consults to skip previously ingested
// papers across runs. It is the only cross-run shared resource in the
// pipeline. Keys are persisted in a SQLite database opened in WAL mode;
// writers additionally serialize through an exclusive advisory file lock
// since a run's whole Add/Commit sequence must be atomic, not just each
// individual statement.
type SeenSet struct {
	path string
	db   *sql.DB
	keys map[string]struct{}
	lock *flock.Flock
}

// OpenSeenSet opens (creating if necessary) the SQLite-backed seen set at
// path and loads its keys into memory. The returned SeenSet holds no
// advisory lock; call Lock before mutating and committing.
func OpenSeenSet(path string) (*SeenSet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create seen set dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open seen set %s: %w", path, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS seen_keys (key TEXT PRIMARY KEY)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create seen set schema %s: %w", path, err)
	}

	s := &SeenSet{
		path: path,
		db:   db,
		keys: make(map[string]struct{}),
		lock: flock.New(path + ".lock"),
	}

	rows, err := db.Query(`SELECT key FROM seen_keys`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read seen set %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			db.Close()
			return nil, fmt.Errorf("scan seen set row %s: %w", path, err)
		}
		s.keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("iterate seen set %s: %w", path, err)
	}

	return s, nil
}

// Lock acquires the cross-process exclusive lock guarding this seen set,
// blocking until available. Callers must call Unlock when done.
func (s *SeenSet) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create seen set dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock seen set %s: %w", s.path, err)
	}
	return nil
}

// Unlock releases the lock acquired by Lock and closes the underlying
// database handle.
func (s *SeenSet) Unlock() error {
	_ = s.db.Close()
	return s.lock.Unlock()
}

// Contains reports whether key is already present.
func (s *SeenSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Add records key as seen. It does not persist the change; call Commit.
func (s *SeenSet) Add(key string) {
	s.keys[key] = struct{}{}
}

// Len returns the number of keys currently held.
func (s *SeenSet) Len() int {
	return len(s.keys)
}

// Commit upserts every held key into the database within a single
// transaction.
func (s *SeenSet) Commit() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seen set commit: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO seen_keys (key) VALUES (?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare seen set insert: %w", err)
	}
	defer stmt.Close()

	for k := range s.keys {
		if _, err := stmt.Exec(k); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert seen key %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seen set: %w", err)
	}
	return nil
}
