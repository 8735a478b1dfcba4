package usage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchParsesStatistics(t *testing.T) {
	var gotPath, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"statistics":{"totalCalls":12,"outboundCalls":9,"inboundCalls":3,"totalCallTime":720,"outboundCallTime":600,"inboundCallTime":120}}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "secret", nil)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)
	stats, err := c.Fetch(context.Background(), start, end)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stats.TotalCalls != 12 || stats.TotalCallTime != 720 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if gotPath != "/usage?endDate=2025-03-30&startDate=2025-03-01" {
		t.Fatalf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestFetchDoesNotRetryHTTPErrors(t *testing.T) {
	var calls int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	c := New(ts.URL, "", nil)
	if _, err := c.Fetch(context.Background(), time.Now(), time.Now()); err == nil {
		t.Fatal("expected an error")
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("status errors must not be retried, got %d attempts", calls)
	}
}
