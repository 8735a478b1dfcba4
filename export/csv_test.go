package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"coldcall_crm/store"
)

func TestBuildCSVRoundTripsEmbeddedQuotes(t *testing.T) {
	records := []store.CallRecord{{
		ContactName:     "Ann",
		ContactPhone:    "+1 800 555 0100",
		DurationSeconds: 125,
		StartedAt:       time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC),
		Outcome:         "sold",
		Notes:           `He said, "call back" on Monday`,
	}}
	body, err := BuildCSV(records, []string{"contact_name", "duration", "outcome", "notes"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("generated CSV does not parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "Contact Name" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][1] != "2:05" {
		t.Fatalf("duration column = %q", rows[1][1])
	}
	if rows[1][2] != "Sold" {
		t.Fatalf("outcome column = %q", rows[1][2])
	}
	if rows[1][3] != `He said, "call back" on Monday` {
		t.Fatalf("notes did not survive the round trip: %q", rows[1][3])
	}
}

func TestBuildCSVSkipsUnknownFields(t *testing.T) {
	records := []store.CallRecord{{ContactName: "Ann"}}
	body, err := BuildCSV(records, []string{"contact_name", "not_a_field"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(body, "not_a_field") {
		t.Fatal("unknown field leaked into output")
	}
}

func TestBuildCSVNoUsableFields(t *testing.T) {
	if _, err := BuildCSV(nil, []string{"bogus"}); err == nil {
		t.Fatal("expected an error when no selected field is exportable")
	}
}

func TestBuildCSVDefaultsFields(t *testing.T) {
	body, err := BuildCSV(nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(body, "Contact Name") {
		t.Fatalf("default header missing: %q", body)
	}
}

func TestFilenameComposition(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)

	plain := Filename(now, store.CallFilter{})
	if plain != "call-logs-2025-03-07.csv" {
		t.Fatalf("plain filename = %q", plain)
	}

	full := Filename(now, store.CallFilter{
		Search:   "Acme East",
		Outcomes: []string{"sold", "callback"},
		From:     "2025-03-01",
		To:       "",
	})
	want := "call-logs-2025-03-07-search-acme_east-results-sold_callback-2025-03-01-to-all.csv"
	if full != want {
		t.Fatalf("filename = %q, want %q", full, want)
	}
}
