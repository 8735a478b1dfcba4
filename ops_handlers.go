package main

import (
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func (s *server) handleOpsStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	version := strings.TrimSpace(os.Getenv("GIT_SHA"))
	if version == "" {
		version = "dev"
	}

	qStats := s.queue.Stats()
	s.metrics.UpdateQueue(qStats.Length, qStats.Capacity, qStats.WorkerCount)
	mSnap := s.metrics.Snapshot()

	dbStatus := map[string]interface{}{"db_ok": true, "db_path": s.cfg.DBPath}
	if err := s.store.Health(); err != nil {
		dbStatus["db_ok"] = false
		dbStatus["last_db_error"] = err.Error()
	}

	db := s.store.DB()
	callsTotal := countRows(db, "SELECT COUNT(1) FROM call_records")
	listsTotal := countRows(db, "SELECT COUNT(1) FROM contact_lists")
	contactsTotal := countRows(db, "SELECT COUNT(1) FROM contacts")
	lastCall := nullableTimeFromDB(db, "SELECT MAX(started_at) FROM call_records")
	lastImportErr := nullableStringFromDB(db, "SELECT last_error FROM ops_job WHERE type = 'import' AND last_error IS NOT NULL ORDER BY created_at DESC LIMIT 1")

	summary := map[string]interface{}{
		"version": version,
		"config": map[string]interface{}{
			"IMPORT_DIR":     s.cfg.ImportDir,
			"WORK_DIR":       s.cfg.WorkDir,
			"DB_PATH":        s.cfg.DBPath,
			"WORKER_COUNT":   s.cfg.WorkerCount,
			"JOB_QUEUE_SIZE": s.cfg.JobQueueSize,
			"USAGE_API":      s.cfg.Usage.Enabled,
		},
		"queue": map[string]interface{}{
			"queued":       qStats.Length,
			"capacity":     qStats.Capacity,
			"worker_count": qStats.WorkerCount,
			"processed":    qStats.Processed,
			"failed":       qStats.Failed,
		},
		"pipeline": map[string]interface{}{
			"calls_total":         callsTotal,
			"contact_lists_total": listsTotal,
			"contacts_total":      contactsTotal,
			"queries_served":      mSnap.QueriesServed,
			"queries_failed":      mSnap.QueriesFailed,
			"exports_built":       mSnap.ExportsBuilt,
			"rows_imported":       mSnap.RowsImported,
			"last_call_ts":        lastCall,
			"last_import_error":   lastImportErr,
		},
		"db": dbStatus,
	}
	if latest := s.loader.Latest(); latest != nil {
		summary["analytics"] = map[string]interface{}{
			"last_refresh": latest.LoadedAt,
			"refresh_seq":  latest.Seq,
		}
	}
	respondJSON(w, summary)
}

func (s *server) handleOpsJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := s.store.ListOpsJobs(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db error")
		return
	}
	respondJSON(w, map[string]interface{}{"jobs": jobs})
}

func (s *server) handleOpsJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/ops/jobs/")
	jobID = strings.TrimSuffix(jobID, "/logs")
	if jobID == "" {
		http.NotFound(w, r)
		return
	}
	job, err := s.store.FetchOpsJob(r.Context(), jobID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	logs := s.store.OpsLogs(r.Context(), jobID, 200)
	respondJSON(w, map[string]interface{}{"job": job, "logs": logs})
}

func countRows(db *sql.DB, query string, args ...interface{}) int64 {
	var n sql.NullInt64
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0
	}
	if n.Valid {
		return n.Int64
	}
	return 0
}

func nullableStringFromDB(db *sql.DB, query string, args ...interface{}) *string {
	var v sql.NullString
	if err := db.QueryRow(query, args...).Scan(&v); err != nil {
		return nil
	}
	if v.Valid {
		val := v.String
		if len(val) > 160 {
			val = val[:157] + "..."
		}
		return &val
	}
	return nil
}

func nullableTimeFromDB(db *sql.DB, query string, args ...interface{}) *time.Time {
	var v sql.NullTime
	if err := db.QueryRow(query, args...).Scan(&v); err != nil {
		return nil
	}
	if v.Valid {
		t := v.Time
		return &t
	}
	return nil
}
