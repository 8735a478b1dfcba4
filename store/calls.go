package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"coldcall_crm/formatting"
)

// CallRecord is one logged call. Optional text fields are empty strings and
// an absent contact list is id 0.
type CallRecord struct {
	ID              int64      `json:"id"`
	UserID          string     `json:"user_id"`
	ContactName     string     `json:"contact_name"`
	ContactPhone    string     `json:"contact_phone"`
	Company         string     `json:"company,omitempty"`
	Position        string     `json:"position,omitempty"`
	Email           string     `json:"email,omitempty"`
	Location        string     `json:"location,omitempty"`
	Website         string     `json:"website,omitempty"`
	CallSID         string     `json:"call_sid,omitempty"`
	Direction       string     `json:"direction"`
	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Transcription   string     `json:"transcription,omitempty"`
	AISummary       string     `json:"ai_summary,omitempty"`
	AISuggestions   string     `json:"ai_suggestions,omitempty"`
	ContactListID   int64      `json:"contact_list_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CallFilter describes one list/export query. From and To are calendar dates
// ("2006-01-02"); From is inclusive at midnight, To is inclusive of the
// whole day (exclusive of the following day). Outcomes nil means no outcome
// clause; an empty non-nil slice matches nothing, which is how a view
// restriction intersected with a disjoint user selection must behave.
type CallFilter struct {
	UserID        string
	From          string
	To            string
	Search        string
	Outcomes      []string
	ContactListID int64
	SortKey       string
	SortDir       string
	Page          int
	PageSize      int
}

// PageSizes are the selectable page sizes; anything else falls back to 10.
var PageSizes = []int{5, 10, 15}

const defaultPageSize = 10

// searchColumns is the fixed set of text columns free-text search scans.
var searchColumns = []string{
	"contact_name",
	"contact_phone",
	"company",
	"position",
	"email",
	"location",
	"call_sid",
	"outcome",
	"notes",
	"ai_summary",
	"website",
	"transcription",
}

const callColumns = `id, user_id, contact_name, contact_phone, company, position, email, location, website, call_sid, direction, duration_seconds, started_at, ended_at, outcome, notes, transcription, ai_summary, ai_suggestions, contact_list_id, created_at, updated_at`

// phoneDigits strips the punctuation dialers add so a digit search matches
// the stored number as one contiguous run.
const phoneDigits = `replace(replace(replace(replace(replace(replace(coalesce(contact_phone,''),'+',''),'-',''),' ',''),'(',''),')',''),'.','')`

// buildCallWhere composes the WHERE fragment and args for a filter. The
// user scope clause always comes first.
func buildCallWhere(f CallFilter) ([]string, []interface{}) {
	clauses := []string{"user_id = ?"}
	args := []interface{}{f.UserID}

	if from, ok := parseDay(f.From); ok {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, from)
	}
	if f.To != "" {
		if to, ok := parseDay(f.To); ok {
			clauses = append(clauses, "started_at < ?")
			args = append(args, to.AddDate(0, 0, 1))
		} else if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(f.To)); err == nil {
			day := time.Date(ts.Year(), ts.Month(), ts.Day(), 23, 59, 59, 999_000_000, ts.Location())
			clauses = append(clauses, "started_at <= ?")
			args = append(args, day)
		} else {
			log.Printf("unparseable to-date %q, dropping upper bound", f.To)
		}
	}

	if search := formatting.SanitizeSearch(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		parts := make([]string, 0, len(searchColumns)+1)
		for _, col := range searchColumns {
			parts = append(parts, fmt.Sprintf("lower(coalesce(%s,'')) LIKE ?", col))
			args = append(args, like)
		}
		if pattern := formatting.DigitSearchPattern(search); pattern != "" {
			parts = append(parts, phoneDigits+" LIKE ?")
			args = append(args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}

	if f.Outcomes != nil {
		if len(f.Outcomes) == 0 {
			// restriction intersected with a disjoint selection: match nothing
			clauses = append(clauses, "1 = 0")
		} else {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Outcomes)), ",")
			clauses = append(clauses, fmt.Sprintf("lower(coalesce(outcome,'')) IN (%s)", placeholders))
			for _, outcome := range f.Outcomes {
				args = append(args, strings.ToLower(strings.TrimSpace(outcome)))
			}
		}
	}

	if f.ContactListID > 0 {
		clauses = append(clauses, "contact_list_id = ?")
		args = append(args, f.ContactListID)
	}

	return clauses, args
}

// sortClause maps the backend-sortable keys to columns. Derived fields
// (type label, formatted duration, outcome label) are not stored columns and
// get sorted client-side by the handler after the page is fetched.
func sortClause(key, dir string) string {
	column := "started_at"
	switch key {
	case "name":
		column = "contact_name"
	case "phone":
		column = "contact_phone"
	case "started_at", "date", "":
	default:
	}
	direction := "DESC"
	if strings.EqualFold(dir, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id DESC", column, direction)
}

// ListCalls runs the filtered, sorted, paginated query plus its companion
// total count. Page is 1-indexed.
func (s *Store) ListCalls(ctx context.Context, f CallFilter) ([]CallRecord, int64, error) {
	clauses, args := buildCallWhere(f)
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int64
	if err := queryRowWithRetry(s.db, func(row *sql.Row) error {
		return row.Scan(&total)
	}, "SELECT COUNT(1) FROM call_records"+where, args...); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if !allowedPageSize(size) {
		size = defaultPageSize
	}
	offset := (page - 1) * size

	query := "SELECT " + callColumns + " FROM call_records" + where + sortClause(f.SortKey, f.SortDir) + " LIMIT ? OFFSET ?"
	pageArgs := append(append([]interface{}{}, args...), size, offset)

	rows, err := queryWithRetry(s.db, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// ExportCalls re-runs the filter without pagination. Export and on-screen
// pagination are independent fetches sharing the same predicate, so an
// export always reflects every matching record, not the visible page.
func (s *Store) ExportCalls(ctx context.Context, f CallFilter) ([]CallRecord, error) {
	clauses, args := buildCallWhere(f)
	query := "SELECT " + callColumns + " FROM call_records WHERE " + strings.Join(clauses, " AND ") + sortClause(f.SortKey, f.SortDir)

	rows, err := queryWithRetry(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertCall stores a record, deriving duration from the end/start
// timestamps when the caller did not supply one.
func (s *Store) InsertCall(ctx context.Context, rec CallRecord) (int64, error) {
	if rec.DurationSeconds <= 0 {
		rec.DurationSeconds = derivedDuration(rec.StartedAt, rec.EndedAt)
	}
	res, err := execWithRetry(s.db, `INSERT INTO call_records
		(user_id, contact_name, contact_phone, company, position, email, location, website, call_sid, direction, duration_seconds, started_at, ended_at, outcome, notes, transcription, ai_summary, ai_suggestions, contact_list_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.ContactName, rec.ContactPhone, nullable(rec.Company), nullable(rec.Position), nullable(rec.Email), nullable(rec.Location), nullable(rec.Website), nullable(rec.CallSID), rec.Direction, rec.DurationSeconds, rec.StartedAt, nullableTime(rec.EndedAt), nullable(rec.Outcome), nullable(rec.Notes), nullable(rec.Transcription), nullable(rec.AISummary), nullable(rec.AISuggestions), nullableID(rec.ContactListID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CountCallsBetween counts calls in [from, to), optionally by direction.
func (s *Store) CountCallsBetween(ctx context.Context, userID string, from, to time.Time, contactListID int64, direction string) (int64, error) {
	query := `SELECT COUNT(1) FROM call_records WHERE user_id = ? AND started_at >= ? AND started_at < ?`
	args := []interface{}{userID, from, to}
	if direction != "" {
		query += " AND direction = ?"
		args = append(args, direction)
	}
	if contactListID > 0 {
		query += " AND contact_list_id = ?"
		args = append(args, contactListID)
	}
	var n int64
	err := queryRowWithRetry(s.db, func(row *sql.Row) error { return row.Scan(&n) }, query, args...)
	return n, err
}

// CountOutcomesBetween counts calls in [from, to) whose outcome is in set.
func (s *Store) CountOutcomesBetween(ctx context.Context, userID string, from, to time.Time, contactListID int64, set []string) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(set)), ",")
	query := fmt.Sprintf(`SELECT COUNT(1) FROM call_records WHERE user_id = ? AND started_at >= ? AND started_at < ? AND lower(coalesce(outcome,'')) IN (%s)`, placeholders)
	args := []interface{}{userID, from, to}
	for _, outcome := range set {
		args = append(args, strings.ToLower(strings.TrimSpace(outcome)))
	}
	if contactListID > 0 {
		query += " AND contact_list_id = ?"
		args = append(args, contactListID)
	}
	var n int64
	err := queryRowWithRetry(s.db, func(row *sql.Row) error { return row.Scan(&n) }, query, args...)
	return n, err
}

// MinutesBetween sums stored durations over [from, to), in minutes.
func (s *Store) MinutesBetween(ctx context.Context, userID string, from, to time.Time, contactListID int64, direction string) (float64, error) {
	query := `SELECT COALESCE(SUM(duration_seconds), 0) FROM call_records WHERE user_id = ? AND started_at >= ? AND started_at < ?`
	args := []interface{}{userID, from, to}
	if direction != "" {
		query += " AND direction = ?"
		args = append(args, direction)
	}
	if contactListID > 0 {
		query += " AND contact_list_id = ?"
		args = append(args, contactListID)
	}
	var seconds float64
	if err := queryRowWithRetry(s.db, func(row *sql.Row) error { return row.Scan(&seconds) }, query, args...); err != nil {
		return 0, err
	}
	return seconds / 60, nil
}

func scanCall(rows *sql.Rows) (CallRecord, error) {
	var rec CallRecord
	var company, position, email, location, website, callSID, outcome, notes, transcription, aiSummary, aiSuggestions sql.NullString
	var contactName, contactPhone sql.NullString
	var endedAt sql.NullTime
	var contactListID sql.NullInt64
	if err := rows.Scan(&rec.ID, &rec.UserID, &contactName, &contactPhone, &company, &position, &email, &location, &website, &callSID, &rec.Direction, &rec.DurationSeconds, &rec.StartedAt, &endedAt, &outcome, &notes, &transcription, &aiSummary, &aiSuggestions, &contactListID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	rec.ContactName = contactName.String
	rec.ContactPhone = contactPhone.String
	rec.Company = company.String
	rec.Position = position.String
	rec.Email = email.String
	rec.Location = location.String
	rec.Website = website.String
	rec.CallSID = callSID.String
	rec.Outcome = outcome.String
	rec.Notes = notes.String
	rec.Transcription = transcription.String
	rec.AISummary = aiSummary.String
	rec.AISuggestions = aiSuggestions.String
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	if contactListID.Valid {
		rec.ContactListID = contactListID.Int64
	}
	if rec.DurationSeconds <= 0 {
		rec.DurationSeconds = derivedDuration(rec.StartedAt, rec.EndedAt)
	}
	return rec, nil
}

// derivedDuration is max(0, ended-started) when both timestamps are present.
func derivedDuration(started time.Time, ended *time.Time) int {
	if ended == nil || started.IsZero() {
		return 0
	}
	d := int(ended.Sub(started).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

func parseDay(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func allowedPageSize(size int) bool {
	for _, allowed := range PageSizes {
		if size == allowed {
			return true
		}
	}
	return false
}

func nullable(value string) interface{} {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableID(id int64) interface{} {
	if id <= 0 {
		return nil
	}
	return id
}
