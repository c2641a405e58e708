package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
)

const (
	schemaVersionMetaKey = "schema_version"
	outcomeChainTipKey   = "outcome_chain_tip"
)

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create entity tables",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS meta (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS auth_tokens (
					id TEXT PRIMARY KEY,
					session_token TEXT NOT NULL,
					auth_type TEXT NOT NULL,
					token_ciphertext BLOB NOT NULL,
					created_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS enrollments (
					id TEXT PRIMARY KEY,
					user_id INTEGER NOT NULL,
					sensor_id INTEGER NOT NULL,
					modality TEXT NOT NULL,
					enrolled_at TEXT NOT NULL,
					UNIQUE (user_id, sensor_id)
				)`,
				`CREATE TABLE IF NOT EXISTS outcome_events (
					id TEXT PRIMARY KEY,
					session_token TEXT NOT NULL,
					reason TEXT NOT NULL,
					modality TEXT NOT NULL,
					crypto_bound INTEGER NOT NULL DEFAULT 0,
					confirm_latency_ms INTEGER NOT NULL DEFAULT 0,
					total_latency_ms INTEGER NOT NULL DEFAULT 0,
					prev_hash TEXT NOT NULL,
					event_hash TEXT NOT NULL,
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_outcome_events_created
					ON outcome_events(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_enrollments_user
					ON enrollments(user_id)`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("exec migration statement: %w", err)
				}
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func RunMigrations(db *sql.DB, migrations []Migration) error {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("run migrations: create meta table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	latest := 0
	if len(sorted) > 0 {
		latest = sorted[len(sorted)-1].Version
	}
	if current > latest {
		return fmt.Errorf("%w: have %d, code supports %d", ErrSchemaTooNew, current, latest)
	}

	for _, migration := range sorted {
		if migration.Version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("run migrations: begin v%d: %w", migration.Version, err)
		}
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migrations: apply v%d (%s): %w", migration.Version, migration.Description, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO meta(key, value) VALUES(?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			schemaVersionMetaKey, strconv.Itoa(migration.Version),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migrations: record v%d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("run migrations: commit v%d: %w", migration.Version, err)
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, schemaVersionMetaKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", value, err)
	}
	return version, nil
}
