package store

import (
	"database/sql"
	"strings"
	"time"
)

const (
	busyAttempts = 5
	busyBackoff  = 50 * time.Millisecond
)

// isBusy reports whether an error is a transient SQLite lock. modernc's
// driver surfaces these as text, not typed errors.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func execWithRetry(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		res, err = db.Exec(query, args...)
		if !isBusy(err) {
			return res, err
		}
		time.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return res, err
}

func queryWithRetry(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		rows, err = db.Query(query, args...)
		if !isBusy(err) {
			return rows, err
		}
		time.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return rows, err
}

func queryRowWithRetry(db *sql.DB, scan func(*sql.Row) error, query string, args ...interface{}) error {
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		err = scan(db.QueryRow(query, args...))
		if !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return err
}
