package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coldcall_crm/analytics"
	"coldcall_crm/store"
	"coldcall_crm/usage"
)

// storeStats adapts the SQLite store to the loader's Stats interface.
type storeStats struct {
	st *store.Store
}

func (a storeStats) CountCalls(ctx context.Context, userID string, p analytics.Period, contactListID int64, direction string) (int64, error) {
	return a.st.CountCallsBetween(ctx, userID, p.From, p.To, contactListID, direction)
}

func (a storeStats) CountOutcomes(ctx context.Context, userID string, p analytics.Period, contactListID int64, set []string) (int64, error) {
	return a.st.CountOutcomesBetween(ctx, userID, p.From, p.To, contactListID, set)
}

func (a storeStats) MinutesByDirection(ctx context.Context, userID string, p analytics.Period, contactListID int64, direction string) (float64, error) {
	return a.st.MinutesBetween(ctx, userID, p.From, p.To, contactListID, direction)
}

// usageMinutes adapts the provider usage client. The client takes inclusive
// calendar dates while periods carry an exclusive upper bound, and it reports
// seconds while KPIs want minutes.
type usageMinutes struct {
	client *usage.Client
}

func (u usageMinutes) CallTime(ctx context.Context, from, to time.Time) (analytics.CallTime, error) {
	stats, err := u.client.Fetch(ctx, from, to.AddDate(0, 0, -1))
	if err != nil {
		return analytics.CallTime{}, err
	}
	return analytics.CallTime{
		Total:    stats.TotalCallTime / 60,
		Outbound: stats.OutboundCallTime / 60,
		Inbound:  stats.InboundCallTime / 60,
	}, nil
}

func (s *server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	period := s.analyticsPeriod(q.Get("from"), q.Get("to"))

	var contactListID int64
	if v := q.Get("contact_list_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			contactListID = id
		}
	}

	s.rememberAnalytics(analyticsRequest{UserID: userID, Period: period, ContactListID: contactListID})

	// the response always carries the snapshot computed for this request;
	// the sequence guard only protects the cached snapshot the background
	// refresh loop keeps warm, which may belong to another user or filter
	snap, _ := s.loader.Refresh(r.Context(), userID, period, contactListID)
	s.metrics.RecordQuery(nil)
	respondJSON(w, snap)
}

// analyticsPeriod parses the calendar-date window. Both bounds absent means
// the configured trailing window ending today; the upper bound is exclusive
// of the following day.
func (s *server) analyticsPeriod(fromRaw, toRaw string) analytics.Period {
	now := time.Now()
	period := analytics.Period{
		To:   midnight(now).AddDate(0, 0, 1),
		From: midnight(now).AddDate(0, 0, -(s.cfg.Analytics.WindowDays - 1)),
	}
	if day, err := time.Parse("2006-01-02", strings.TrimSpace(fromRaw)); err == nil {
		period.From = day
	}
	if day, err := time.Parse("2006-01-02", strings.TrimSpace(toRaw)); err == nil {
		period.To = day.AddDate(0, 0, 1)
	}
	return period
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
