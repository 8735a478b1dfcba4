package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"coldcall_crm/export"
	"coldcall_crm/formatting"
	"coldcall_crm/outcomes"
	"coldcall_crm/store"
)

// callRow is one call record plus the derived display fields the table
// renders without re-formatting on the client.
type callRow struct {
	store.CallRecord
	DurationDisplay string         `json:"duration_display"`
	StartedDisplay  string         `json:"started_display"`
	DirectionLabel  string         `json:"direction_label"`
	OutcomeLabel    string         `json:"outcome_label"`
	OutcomeStyle    outcomes.Style `json:"outcome_style"`
}

type callsResponse struct {
	Calls      []callRow `json:"calls"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int64     `json:"total_pages"`
}

func (s *server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	filter := s.parseCallFilter(r, userID)

	records, total, err := s.store.ListCalls(r.Context(), filter)
	s.metrics.RecordQuery(err)
	if err != nil {
		log.Printf("list calls failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": "db error", "calls": []callRow{}})
		return
	}

	rows := make([]callRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, displayRow(rec))
	}
	sortDerived(rows, filter.SortKey, filter.SortDir)

	size := filter.PageSize
	page := filter.Page
	if page < 1 {
		page = 1
	}
	totalPages := int64(0)
	if size > 0 {
		totalPages = (total + int64(size) - 1) / int64(size)
	}
	respondJSON(w, callsResponse{
		Calls:      rows,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	filter := s.parseCallFilter(r, userID)

	job, jobErr := s.store.RecordOpsJob(r.Context(), "export", map[string]string{
		"user": userID, "search": filter.Search, "from": filter.From, "to": filter.To,
	})
	if jobErr != nil {
		log.Printf("record export job: %v", jobErr)
	}
	finish := func(accepted int, errMsg string) {
		if job != nil {
			s.store.CompleteOpsJob(job.ID, accepted, errMsg)
		}
	}

	// a fresh unpaginated fetch: the export always covers every matching
	// record, not the visible page
	records, err := s.store.ExportCalls(r.Context(), filter)
	s.metrics.RecordQuery(err)
	if err != nil {
		log.Printf("export calls failed: %v", err)
		finish(0, err.Error())
		respondError(w, http.StatusInternalServerError, "db error")
		return
	}
	if len(records) == 0 {
		finish(0, "")
		respondError(w, http.StatusNotFound, "no matching records to export")
		return
	}

	settings, err := s.store.LoadSettings(r.Context())
	if err != nil {
		log.Printf("load settings for export: %v", err)
	}
	body, err := export.BuildCSV(records, settings.ExportFields)
	if err != nil {
		finish(len(records), err.Error())
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.RecordExport()
	finish(len(records), "")

	filename := export.Filename(time.Now(), filter)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write([]byte(body))
}

// parseCallFilter maps query params onto a store filter. The Leads view
// (restrict=leads) narrows any outcome selection to positive results; a
// selection entirely outside the restriction must match nothing.
func (s *server) parseCallFilter(r *http.Request, userID string) store.CallFilter {
	q := r.URL.Query()
	filter := store.CallFilter{
		UserID:  userID,
		From:    strings.TrimSpace(q.Get("from")),
		To:      strings.TrimSpace(q.Get("to")),
		Search:  q.Get("q"),
		SortKey: q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if filter.From == "" && filter.To == "" {
		filter.From = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	}

	var selected []string
	if raw := strings.TrimSpace(q.Get("outcomes")); raw != "" {
		for _, slug := range strings.Split(raw, ",") {
			if slug = strings.TrimSpace(slug); slug != "" {
				selected = append(selected, slug)
			}
		}
	}
	var restriction []string
	if strings.EqualFold(q.Get("restrict"), "leads") {
		restriction = outcomes.Positive()
	}
	switch {
	case restriction != nil:
		filter.Outcomes = outcomes.Intersect(restriction, selected)
	case len(selected) > 0:
		filter.Outcomes = outcomes.Expand(selected)
	}

	if v := q.Get("contact_list_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.ContactListID = id
		}
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filter.Page = page
	} else {
		filter.Page = 1
	}
	filter.PageSize = s.resolvePageSize(r.Context(), q.Get("page_size"))
	return filter
}

func (s *server) resolvePageSize(ctx context.Context, raw string) int {
	if n, err := strconv.Atoi(raw); err == nil {
		for _, allowed := range store.PageSizes {
			if n == allowed {
				return n
			}
		}
	}
	if settings, err := s.store.LoadSettings(ctx); err == nil {
		for _, allowed := range store.PageSizes {
			if settings.DefaultPageSize == allowed {
				return settings.DefaultPageSize
			}
		}
	}
	return 10
}

func displayRow(rec store.CallRecord) callRow {
	outcomeLabel := outcomes.TitleCase(rec.Outcome)
	if outcomeLabel == "" {
		outcomeLabel = "—"
	}
	return callRow{
		CallRecord:      rec,
		DurationDisplay: formatting.FormatDuration(rec.DurationSeconds),
		StartedDisplay:  formatting.FormatTime(rec.StartedAt),
		DirectionLabel:  outcomes.TitleCase(rec.Direction),
		OutcomeLabel:    outcomeLabel,
		OutcomeStyle:    outcomes.Resolve(rec.Outcome),
	}
}

// sortDerived orders the fetched page by fields that exist only after
// formatting. Stored-column sorts were already applied by the query; for
// those keys this is a no-op.
func sortDerived(rows []callRow, key, dir string) {
	var less func(a, b callRow) bool
	switch key {
	case "type":
		less = func(a, b callRow) bool { return a.DirectionLabel < b.DirectionLabel }
	case "duration":
		less = func(a, b callRow) bool { return a.DurationSeconds < b.DurationSeconds }
	case "outcome":
		less = func(a, b callRow) bool { return a.OutcomeLabel < b.OutcomeLabel }
	default:
		return
	}
	descending := !strings.EqualFold(dir, "asc")
	sort.SliceStable(rows, func(i, j int) bool {
		if descending {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}
