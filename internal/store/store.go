package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// logFormat is the layout of the log tables, kept in PRAGMA user_version.
// A fresh file is stamped with it; a file stamped with a larger value was
// written by a newer release and is refused.
const logFormat = 1

// ErrNewerFormat is returned by Open for a log written by a newer release.
var ErrNewerFormat = errors.New("translation log format is newer than this release")

// connParams configure every connection through the go-sqlite3 DSN, so a
// reconnect by database/sql gets the same settings.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Store is the translation log.
type Store struct {
	db *sql.DB
}

// Open opens the translation log at path, creating it when missing.
// Opening an existing log of the current format leaves it unchanged.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open translation log: %w", err)
	}
	// One writer at a time; runs are recorded in a single transaction.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open translation log %s: %w", path, err)
	}
	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("translation log %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the log. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// prepare creates the log tables of a fresh file and checks the format of
// an existing one.
func prepare(db *sql.DB) error {
	var format int
	if err := db.QueryRow("PRAGMA user_version").Scan(&format); err != nil {
		return fmt.Errorf("read format: %w", err)
	}
	if format > logFormat {
		return fmt.Errorf("%w: file has format %d, this release writes %d", ErrNewerFormat, format, logFormat)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if format < logFormat {
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", logFormat)); err != nil {
			return fmt.Errorf("stamp format: %w", err)
		}
	}
	return tx.Commit()
}
