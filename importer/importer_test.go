package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coldcall_crm/metrics"
	"coldcall_crm/queue"
	"coldcall_crm/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "import.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestImportFileCreatesList(t *testing.T) {
	st := testStore(t)
	m := metrics.New()
	dir := t.TempDir()
	im := New(dir, "u1", st, nil, m)

	path := writeCSV(t, dir, "q1_prospects.csv", "Name,Phone,Company\nAnn,+1 800 555 0100,Acme\nBob,+1 800 555 0101,\n")
	if err := im.importFile(context.Background(), path); err != nil {
		t.Fatalf("import: %v", err)
	}

	lists, err := st.ListContactLists(context.Background(), "u1")
	if err != nil || len(lists) != 1 {
		t.Fatalf("lists: %v (%d)", err, len(lists))
	}
	if lists[0].Name != "q1 prospects" || lists[0].ContactCount != 2 {
		t.Fatalf("unexpected list: %+v", lists[0])
	}
	if m.Snapshot().RowsImported != 2 {
		t.Fatalf("rows imported = %d", m.Snapshot().RowsImported)
	}

	jobs, err := st.ListOpsJobs(context.Background(), 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("jobs: %v (%d)", err, len(jobs))
	}
	if jobs[0].Status != "succeeded" || jobs[0].Accepted != 2 {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
}

func TestImportFileSkipsAlreadyImported(t *testing.T) {
	st := testStore(t)
	dir := t.TempDir()
	im := New(dir, "u1", st, nil, nil)

	path := writeCSV(t, dir, "dupes.csv", "Name,Phone\nAnn,+1 800 555 0100\n")
	if err := im.importFile(context.Background(), path); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if err := im.importFile(context.Background(), path); err != nil {
		t.Fatalf("second import should no-op, got %v", err)
	}

	lists, err := st.ListContactLists(context.Background(), "u1")
	if err != nil || len(lists) != 1 {
		t.Fatalf("lists: %v (%d)", err, len(lists))
	}
}

func TestImportFileRecordsFailure(t *testing.T) {
	st := testStore(t)
	dir := t.TempDir()
	im := New(dir, "u1", st, nil, nil)

	path := writeCSV(t, dir, "empty.csv", "Name,Phone\n")
	if err := im.importFile(context.Background(), path); err == nil {
		t.Fatal("expected an error for a contact-free file")
	}

	jobs, err := st.ListOpsJobs(context.Background(), 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("jobs: %v (%d)", err, len(jobs))
	}
	if jobs[0].Status != "failed" || !jobs[0].LastError.Valid {
		t.Fatalf("failure should be recorded on the job: %+v", jobs[0])
	}
}

func TestScanEnqueuesPendingFiles(t *testing.T) {
	st := testStore(t)
	m := metrics.New()
	q := queue.New(4, 1, 5*time.Second, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	dir := t.TempDir()
	im := New(dir, "u1", st, q, m)
	writeCSV(t, dir, "fresh.csv", "Name,Phone\nAnn,+1 800 555 0100\n")
	writeCSV(t, dir, "notes.txt", "ignored")

	if err := im.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		lists, err := st.ListContactLists(ctx, "u1")
		if err != nil {
			t.Fatalf("lists: %v", err)
		}
		if len(lists) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scan did not import the pending csv in time")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
