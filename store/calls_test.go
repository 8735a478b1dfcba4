package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCall(t *testing.T, s *Store, rec CallRecord) int64 {
	t.Helper()
	if rec.UserID == "" {
		rec.UserID = "u1"
	}
	if rec.Direction == "" {
		rec.Direction = "outgoing"
	}
	id, err := s.InsertCall(context.Background(), rec)
	if err != nil {
		t.Fatalf("insert call: %v", err)
	}
	return id
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestBuildCallWhereUserScopeFirst(t *testing.T) {
	clauses, args := buildCallWhere(CallFilter{UserID: "u1"})
	if clauses[0] != "user_id = ?" {
		t.Fatalf("first clause must scope by user, got %q", clauses[0])
	}
	if args[0] != "u1" {
		t.Fatalf("first arg = %v", args[0])
	}
}

func TestBuildCallWhereDisjointOutcomesMatchNothing(t *testing.T) {
	clauses, _ := buildCallWhere(CallFilter{UserID: "u1", Outcomes: []string{}})
	joined := strings.Join(clauses, " AND ")
	if !strings.Contains(joined, "1 = 0") {
		t.Fatalf("empty outcome set must produce an impossible predicate, got %q", joined)
	}
}

func TestBuildCallWhereUnparseableToDropsBound(t *testing.T) {
	clauses, _ := buildCallWhere(CallFilter{UserID: "u1", To: "garbage"})
	for _, c := range clauses {
		if strings.Contains(c, "started_at <") {
			t.Fatalf("unparseable to-date must not bound the query: %q", c)
		}
	}
}

func TestListCallsDateRangeInclusiveOfToDay(t *testing.T) {
	s := openTestStore(t)
	seedCall(t, s, CallRecord{ContactName: "early", StartedAt: day(t, "2025-03-01 09:00")})
	seedCall(t, s, CallRecord{ContactName: "late", StartedAt: day(t, "2025-03-05 23:30")})
	seedCall(t, s, CallRecord{ContactName: "after", StartedAt: day(t, "2025-03-06 00:15")})

	calls, total, err := s.ListCalls(context.Background(), CallFilter{
		UserID: "u1", From: "2025-03-01", To: "2025-03-05", PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 calls inside the range, got %d", total)
	}
	for _, c := range calls {
		if c.ContactName == "after" {
			t.Fatal("call on the day after the to-bound leaked in")
		}
	}
}

func TestListCallsScopedToUser(t *testing.T) {
	s := openTestStore(t)
	seedCall(t, s, CallRecord{UserID: "u1", ContactName: "mine", StartedAt: day(t, "2025-03-01 09:00")})
	seedCall(t, s, CallRecord{UserID: "u2", ContactName: "theirs", StartedAt: day(t, "2025-03-01 10:00")})

	_, total, err := s.ListCalls(context.Background(), CallFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("row scoping failed, got %d rows", total)
	}
}

func TestListCallsPhoneDigitSearch(t *testing.T) {
	s := openTestStore(t)
	seedCall(t, s, CallRecord{ContactName: "match", ContactPhone: "+1 800-943-3043", StartedAt: day(t, "2025-03-01 09:00")})
	// same digits scattered through the number; only a contiguous run counts
	seedCall(t, s, CallRecord{ContactName: "miss", ContactPhone: "+1 801-943-3043", StartedAt: day(t, "2025-03-01 10:00")})

	calls, total, err := s.ListCalls(context.Background(), CallFilter{UserID: "u1", Search: "1800"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(calls) != 1 || calls[0].ContactName != "match" {
		t.Fatalf("digit search should match the contiguous sequence only, got %d rows", total)
	}
}

func TestListCallsSearchSanitized(t *testing.T) {
	s := openTestStore(t)
	seedCall(t, s, CallRecord{ContactName: "Acme East", Company: "Acme", StartedAt: day(t, "2025-03-01 09:00")})

	_, total, err := s.ListCalls(context.Background(), CallFilter{UserID: "u1", Search: "acme% (east)"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("sanitized search should still match, got %d", total)
	}
}

func TestListCallsOutcomeFilter(t *testing.T) {
	s := openTestStore(t)
	seedCall(t, s, CallRecord{ContactName: "a", Outcome: "sold", StartedAt: day(t, "2025-03-01 09:00")})
	seedCall(t, s, CallRecord{ContactName: "b", Outcome: "callback-later", StartedAt: day(t, "2025-03-01 10:00")})
	seedCall(t, s, CallRecord{ContactName: "c", Outcome: "no-answer", StartedAt: day(t, "2025-03-01 11:00")})

	_, total, err := s.ListCalls(context.Background(), CallFilter{UserID: "u1", Outcomes: []string{"sold", "callback", "callback-later"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 outcome matches, got %d", total)
	}

	_, total, err = s.ListCalls(context.Background(), CallFilter{UserID: "u1", Outcomes: []string{}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Fatalf("empty outcome set must match nothing, got %d", total)
	}
}

func TestListCallsPagination(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 12; i++ {
		seedCall(t, s, CallRecord{ContactName: "c", StartedAt: day(t, "2025-03-01 09:00").Add(time.Duration(i) * time.Hour)})
	}
	calls, total, err := s.ListCalls(context.Background(), CallFilter{UserID: "u1", Page: 2, PageSize: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 12 {
		t.Fatalf("total = %d", total)
	}
	if len(calls) != 5 {
		t.Fatalf("page 2 should hold 5 rows, got %d", len(calls))
	}
}

func TestExportCallsIgnoresPagination(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 8; i++ {
		seedCall(t, s, CallRecord{ContactName: "c", StartedAt: day(t, "2025-03-01 09:00").Add(time.Duration(i) * time.Hour)})
	}
	filter := CallFilter{UserID: "u1", Page: 1, PageSize: 5}
	page, total, err := s.ListCalls(context.Background(), filter)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	exported, err := s.ExportCalls(context.Background(), filter)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(page) != 5 || total != 8 {
		t.Fatalf("pagination sanity failed: page=%d total=%d", len(page), total)
	}
	if len(exported) != 8 {
		t.Fatalf("export must cover every matching record, got %d", len(exported))
	}
}

func TestInsertCallDerivesDuration(t *testing.T) {
	s := openTestStore(t)
	started := day(t, "2025-03-01 09:00")
	ended := started.Add(125 * time.Second)
	seedCall(t, s, CallRecord{ContactName: "c", StartedAt: started, EndedAt: &ended})

	calls, _, err := s.ListCalls(context.Background(), CallFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls[0].DurationSeconds != 125 {
		t.Fatalf("derived duration = %d, want 125", calls[0].DurationSeconds)
	}
}

func TestDerivedDurationClampsNegative(t *testing.T) {
	started := time.Now()
	ended := started.Add(-time.Minute)
	if got := derivedDuration(started, &ended); got != 0 {
		t.Fatalf("negative span should clamp to 0, got %d", got)
	}
}

func TestAnalyticsCounts(t *testing.T) {
	s := openTestStore(t)
	base := day(t, "2025-03-10 09:00")
	seedCall(t, s, CallRecord{Direction: "outgoing", Outcome: "sold", DurationSeconds: 120, StartedAt: base})
	seedCall(t, s, CallRecord{Direction: "incoming", Outcome: "no-answer", DurationSeconds: 60, StartedAt: base.Add(time.Hour)})
	seedCall(t, s, CallRecord{Direction: "outgoing", Outcome: "interested", DurationSeconds: 30, StartedAt: base.Add(2 * time.Hour)})

	ctx := context.Background()
	from := day(t, "2025-03-10 00:00")
	to := day(t, "2025-03-11 00:00")

	total, err := s.CountCallsBetween(ctx, "u1", from, to, 0, "")
	if err != nil || total != 3 {
		t.Fatalf("total = %d err = %v", total, err)
	}
	outbound, err := s.CountCallsBetween(ctx, "u1", from, to, 0, "outgoing")
	if err != nil || outbound != 2 {
		t.Fatalf("outbound = %d err = %v", outbound, err)
	}
	positive, err := s.CountOutcomesBetween(ctx, "u1", from, to, 0, []string{"sold", "interested"})
	if err != nil || positive != 2 {
		t.Fatalf("positive = %d err = %v", positive, err)
	}
	minutes, err := s.MinutesBetween(ctx, "u1", from, to, 0, "")
	if err != nil || minutes != 3.5 {
		t.Fatalf("minutes = %v err = %v", minutes, err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	settings, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if settings.DefaultPageSize != 10 {
		t.Fatalf("seeded page size = %d", settings.DefaultPageSize)
	}

	settings.DefaultPageSize = 15
	settings.ExportFields = []string{"contact_name", "outcome"}
	settings.UsageAPIEnabled = false
	if err := s.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DefaultPageSize != 15 || reloaded.UsageAPIEnabled || len(reloaded.ExportFields) != 2 {
		t.Fatalf("unexpected settings after round trip: %+v", reloaded)
	}
}

func TestSaveSettingsRejectsBadPageSize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveSettings(ctx, Settings{DefaultPageSize: 999}); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DefaultPageSize != defaultPageSize {
		t.Fatalf("bad page size should fall back to %d, got %d", defaultPageSize, reloaded.DefaultPageSize)
	}
}

func TestContactListLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	listID, err := s.CreateContactList(ctx, "u1", "Q1 Prospects", "q1.csv")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	added, err := s.AddContacts(ctx, listID, []Contact{
		{Name: "Ann", Phone: "+1 800 555 0100"},
		{Name: "Bob", Phone: "+1 800 555 0101", Company: "Acme"},
	})
	if err != nil || added != 2 {
		t.Fatalf("add contacts: added=%d err=%v", added, err)
	}

	lists, err := s.ListContactLists(ctx, "u1")
	if err != nil || len(lists) != 1 {
		t.Fatalf("list lists: %v (%d)", err, len(lists))
	}
	if lists[0].ContactCount != 2 {
		t.Fatalf("contact count = %d", lists[0].ContactCount)
	}

	id, err := s.FindContactListBySource(ctx, "q1.csv")
	if err != nil || id != listID {
		t.Fatalf("find by source: id=%d err=%v", id, err)
	}
	missing, err := s.FindContactListBySource(ctx, "nope.csv")
	if err != nil || missing != 0 {
		t.Fatalf("missing source should yield 0, got %d err=%v", missing, err)
	}
}

func TestOpsJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job, err := s.RecordOpsJob(ctx, "import", map[string]string{"file": "a.csv"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	s.AppendOpsLog(job.ID, "info", "started")
	s.CompleteOpsJob(job.ID, 3, "")

	fetched, err := s.FetchOpsJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetched.Status != "succeeded" || fetched.Accepted != 3 {
		t.Fatalf("unexpected job state: %+v", fetched)
	}
	logs := s.OpsLogs(ctx, job.ID, 10)
	if len(logs) != 1 || logs[0].Message != "started" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}
