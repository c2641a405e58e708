// Package storage is the sqlite-backed persistence layer: committed
// authentication proofs, biometric enrollments, and the hash-chained
// outcome telemetry log.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/argusauth/argus/internal/crypto"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys=ON`
	pragmaBusyTimeout    = `PRAGMA busy_timeout=5000`
)

type Store struct {
	db     *sql.DB
	path   string
	cipher *crypto.TokenCipher

	Tokens      TokenRepository
	Enrollments EnrollmentRepository
	Outcomes    OutcomeRepository
}

// Open opens (creating if needed) the store at path. The cipher seals token
// blobs at rest; it may be nil for telemetry-only deployments, in which
// case token commits fail.
func Open(path string, cipher *crypto.TokenCipher) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open storage: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(db, DefaultMigrations()); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{
		db:     db,
		path:   path,
		cipher: cipher,
	}
	store.Tokens = &tokenRepository{db: db, cipher: cipher}
	store.Enrollments = &enrollmentRepository{db: db}
	store.Outcomes = &outcomeRepository{db: db}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

func configureSQLite(db *sql.DB) error {
	for _, pragma := range []string{pragmaJournalModeWAL, pragmaForeignKeysOn, pragmaBusyTimeout} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("configure sqlite: %s: %w", pragma, err)
		}
	}
	return nil
}

func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}
