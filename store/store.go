package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for call records, contact lists, settings, and
// ops jobs. Row-level scoping by user id is applied inside every query; no
// caller ever sees another user's rows.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for ops-style diagnostics.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			contact_name TEXT,
			contact_phone TEXT,
			company TEXT,
			position TEXT,
			email TEXT,
			location TEXT,
			website TEXT,
			call_sid TEXT,
			direction TEXT NOT NULL DEFAULT 'outgoing',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NULL,
			outcome TEXT,
			notes TEXT,
			transcription TEXT,
			ai_summary TEXT,
			ai_suggestions TEXT,
			contact_list_id INTEGER NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TRIGGER IF NOT EXISTS call_records_updated_at
		AFTER UPDATE ON call_records
		BEGIN
			UPDATE call_records SET updated_at = CURRENT_TIMESTAMP WHERE id = old.id;
		END;`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_user_started ON call_records(user_id, started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_outcome ON call_records(outcome);`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_list ON call_records(contact_list_id);`,
		`CREATE TABLE IF NOT EXISTS contact_lists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			source_file TEXT,
			contact_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_list_id INTEGER NOT NULL,
			name TEXT,
			phone TEXT,
			company TEXT,
			position TEXT,
			email TEXT,
			location TEXT,
			website TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_list ON contacts(contact_list_id);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			default_page_size INTEGER DEFAULT 10,
			export_fields TEXT,
			usage_api_enabled INTEGER DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`INSERT OR IGNORE INTO app_settings(id, default_page_size, export_fields, usage_api_enabled) VALUES(1, 10, '[]', 1);`,
		`CREATE TABLE IF NOT EXISTS ops_job (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NULL,
			accepted INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME NULL,
			finished_at DATETIME NULL,
			last_error TEXT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ops_job_log (
			job_id TEXT,
			ts DATETIME,
			level TEXT,
			message TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return s.ensureColumns()
}

// ensureColumns adds columns introduced after early deployments. SQLite has
// no ADD COLUMN IF NOT EXISTS, so existing columns are read first.
func (s *Store) ensureColumns() error {
	needed := map[string]string{
		"website":        "TEXT",
		"call_sid":       "TEXT",
		"transcription":  "TEXT",
		"ai_summary":     "TEXT",
		"ai_suggestions": "TEXT",
		"ended_at":       "TIMESTAMP",
	}
	rows, err := s.db.Query("PRAGMA table_info(call_records);")
	if err != nil {
		return err
	}
	defer rows.Close()
	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	for col, colType := range needed {
		if _, ok := existing[col]; !ok {
			stmt := fmt.Sprintf("ALTER TABLE call_records ADD COLUMN %s %s", col, colType)
			if _, err := s.db.Exec(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Health returns an error when the database is unreachable.
func (s *Store) Health() error {
	var v int
	if err := queryRowWithRetry(s.db, func(row *sql.Row) error { return row.Scan(&v) }, `SELECT 1`); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
