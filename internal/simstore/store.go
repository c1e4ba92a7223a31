// Package simstore is the sole owner of durable state (spec §4.1). No
// subsystem forms SQL itself — every durable read or write goes through a
// typed method on Store, and each subsystem calls only the methods for its
// own domain rows (spec §4.3: "must never touch another subsystem's rows").
package simstore

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_foundation.sql
var foundationMigration string

// Store is the embedded relational database with write-ahead logging and
// foreign-key enforcement (spec §4.1, §6).
type Store struct {
	db *sql.DB
	// tx is the in-flight per-tick transaction, set by BeginTick and cleared
	// by CommitTick/RollbackTick. All typed methods route through conn() so
	// they transparently participate in whichever transaction (or none) is
	// active, mirroring the teacher's pattern of a single owned *sql.DB
	// wrapped by narrow, purpose-built methods.
	tx *sql.Tx
}

// Open creates or opens the simulation database at path, enabling WAL mode
// and foreign-key enforcement (spec §4.1, §6).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, simerr.Storage(err)
	}
	db.SetMaxOpenConns(1) // the engine is single-threaded (spec §5); avoid pool contention.
	if err := db.Ping(); err != nil {
		return nil, simerr.Storage(err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an in-memory database, used in tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, simerr.Storage(err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, simerr.Storage(err)
	}
	return &Store{db: db}, nil
}

// Migrate applies the foundation schema. It is idempotent on re-open: every
// statement is CREATE TABLE/INDEX IF NOT EXISTS.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(foundationMigration); err != nil {
		return simerr.Storage(fmt.Errorf("migrate: %w", err))
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// conn returns the active transaction if one is open, else the raw db
// handle, so every typed method automatically joins the current tick's
// transaction without threading a *sql.Tx through every call site.
func (s *Store) conn() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// BeginTick opens the one store transaction the engine wraps an entire tick
// in (spec §4.4, §5): either every event produced that tick is persisted,
// or none is.
func (s *Store) BeginTick() error {
	if s.tx != nil {
		return simerr.Storage(fmt.Errorf("BeginTick: a transaction is already open"))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return simerr.Storage(err)
	}
	s.tx = tx
	return nil
}

// CommitTick commits the in-flight tick transaction.
func (s *Store) CommitTick() error {
	if s.tx == nil {
		return simerr.Storage(fmt.Errorf("CommitTick: no transaction open"))
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return simerr.Storage(err)
	}
	return nil
}

// RollbackTick aborts the in-flight tick transaction, leaving the store's
// durable state exactly as it was at the previous TickCompleted (spec §5,
// §7).
func (s *Store) RollbackTick() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return simerr.Storage(err)
	}
	return nil
}
