package export

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"coldcall_crm/formatting"
	"coldcall_crm/outcomes"
	"coldcall_crm/store"
)

// Field is one exportable column: a header title plus a renderer.
type Field struct {
	Title  string
	Render func(store.CallRecord) string
}

// fields is the registry of exportable columns, keyed by the field keys the
// settings/export API accepts.
var fields = map[string]Field{
	"contact_name":  {Title: "Contact Name", Render: func(r store.CallRecord) string { return r.ContactName }},
	"contact_phone": {Title: "Phone", Render: func(r store.CallRecord) string { return r.ContactPhone }},
	"company":       {Title: "Company", Render: func(r store.CallRecord) string { return r.Company }},
	"position":      {Title: "Position", Render: func(r store.CallRecord) string { return r.Position }},
	"email":         {Title: "Email", Render: func(r store.CallRecord) string { return r.Email }},
	"location":      {Title: "Location", Render: func(r store.CallRecord) string { return r.Location }},
	"website":       {Title: "Website", Render: func(r store.CallRecord) string { return r.Website }},
	"direction":     {Title: "Call Type", Render: func(r store.CallRecord) string { return outcomes.TitleCase(r.Direction) }},
	"duration":      {Title: "Duration", Render: func(r store.CallRecord) string { return formatting.FormatDuration(r.DurationSeconds) }},
	"started_at":    {Title: "Date & Time", Render: func(r store.CallRecord) string { return formatting.FormatTime(r.StartedAt) }},
	"outcome":       {Title: "Result", Render: func(r store.CallRecord) string { return outcomes.TitleCase(r.Outcome) }},
	"notes":         {Title: "Notes", Render: func(r store.CallRecord) string { return r.Notes }},
	"transcription": {Title: "Transcription", Render: func(r store.CallRecord) string { return r.Transcription }},
	"ai_summary":    {Title: "AI Summary", Render: func(r store.CallRecord) string { return r.AISummary }},
	"ai_suggestions": {Title: "AI Suggestions", Render: func(r store.CallRecord) string {
		// stored as a JSON string already; pass through as-is
		return r.AISuggestions
	}},
}

// DefaultFields is the export column order used when settings carry none.
var DefaultFields = []string{
	"contact_name", "contact_phone", "company", "direction", "duration", "started_at", "outcome", "notes",
}

// KnownField reports whether key maps to an exportable column.
func KnownField(key string) bool {
	_, ok := fields[key]
	return ok
}

// BuildCSV renders the selected fields of every record as CSV: one header
// row of human-readable titles, then one row per record. Quoting follows
// encoding/csv, so embedded quotes, commas, and newlines survive a
// round-trip through any standard parser. Unknown field keys are skipped.
func BuildCSV(records []store.CallRecord, selected []string) (string, error) {
	if len(selected) == 0 {
		selected = DefaultFields
	}
	var active []Field
	for _, key := range selected {
		if field, ok := fields[key]; ok {
			active = append(active, field)
		}
	}
	if len(active) == 0 {
		return "", fmt.Errorf("no exportable fields selected")
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	header := make([]string, 0, len(active))
	for _, field := range active {
		header = append(header, field.Title)
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	row := make([]string, len(active))
	for _, rec := range records {
		for i, field := range active {
			row[i] = field.Render(rec)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Filename derives the download name from the active filter:
// call-logs-{date}[-search-{term}][-results-{outcomes}][-{from}-to-{to}].csv
func Filename(now time.Time, f store.CallFilter) string {
	var b strings.Builder
	b.WriteString("call-logs-")
	b.WriteString(now.Format("2006-01-02"))
	if term := slug(formatting.SanitizeSearch(f.Search)); term != "" {
		b.WriteString("-search-")
		b.WriteString(term)
	}
	if len(f.Outcomes) > 0 {
		b.WriteString("-results-")
		b.WriteString(strings.Join(f.Outcomes, "_"))
	}
	if f.From != "" || f.To != "" {
		b.WriteString("-")
		b.WriteString(orAll(f.From))
		b.WriteString("-to-")
		b.WriteString(orAll(f.To))
	}
	b.WriteString(".csv")
	return b.String()
}

func slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.ReplaceAll(value, " ", "_")
}

func orAll(date string) string {
	if strings.TrimSpace(date) == "" {
		return "all"
	}
	return date
}
