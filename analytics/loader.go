package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"coldcall_crm/outcomes"
)

// Call directions as stored on call_records rows.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionMissed   = "missed"
)

// Stats is the slice of the store the loader needs. All queries are scoped
// to one user and one half-open period; contactListID 0 means unfiltered.
type Stats interface {
	CountCalls(ctx context.Context, userID string, p Period, contactListID int64, direction string) (int64, error)
	CountOutcomes(ctx context.Context, userID string, p Period, contactListID int64, outcomes []string) (int64, error)
	MinutesByDirection(ctx context.Context, userID string, p Period, contactListID int64, direction string) (float64, error)
}

// CallTime is account-wide telephony metering in minutes.
type CallTime struct {
	Total    float64
	Outbound float64
	Inbound  float64
}

// UsageSource reports provider-side call time for a window. It cannot be
// scoped to a contact list, which is why the loader keeps a second path that
// sums stored durations instead.
type UsageSource interface {
	CallTime(ctx context.Context, from, to time.Time) (CallTime, error)
}

// KPI is one analytics tile: a current value plus a badge comparing it to
// the immediately preceding period of equal length.
type KPI struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Badge   string  `json:"badge,omitempty"`
	Err     string  `json:"error,omitempty"`
}

// Snapshot is the result of one analytics load.
type Snapshot struct {
	Seq           uint64    `json:"seq"`
	UserID        string    `json:"user_id"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	ContactListID int64     `json:"contact_list_id,omitempty"`
	KPIs          []KPI     `json:"kpis"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Loader computes KPI snapshots. Refreshes are tagged with a monotonically
// increasing sequence number and a completion that is no longer the latest
// issued refresh is discarded, so a slow in-flight load can never overwrite
// fresher results.
type Loader struct {
	stats Stats
	usage UsageSource

	mu     sync.Mutex
	issued uint64
	latest *Snapshot
}

// NewLoader wires a loader over the store stats and the usage collaborator.
// usage may be nil; minutes then always come from stored durations.
func NewLoader(stats Stats, usage UsageSource) *Loader {
	return &Loader{stats: stats, usage: usage}
}

// Load computes all KPIs for one window. The current and previous query of
// each pair run concurrently; a failing pair marks only its own KPI.
func (l *Loader) Load(ctx context.Context, userID string, p Period, contactListID int64) []KPI {
	prev := p.Previous()

	countPair := func(direction string) (float64, float64, error) {
		return l.pair(ctx, p, prev, func(ctx context.Context, w Period) (float64, error) {
			n, err := l.stats.CountCalls(ctx, userID, w, contactListID, direction)
			return float64(n), err
		})
	}
	outcomePair := func(set []string) (float64, float64, error) {
		return l.pair(ctx, p, prev, func(ctx context.Context, w Period) (float64, error) {
			n, err := l.stats.CountOutcomes(ctx, userID, w, contactListID, set)
			return float64(n), err
		})
	}

	totalCur, totalPrev, totalErr := countPair("")
	outCur, outPrev, outErr := countPair(DirectionOutgoing)
	inCur, inPrev, inErr := countPair(DirectionIncoming)
	posCur, posPrev, posErr := outcomePair(outcomes.Positive())
	soldCur, soldPrev, soldErr := outcomePair([]string{outcomes.Sold})

	minutesCur, minutesPrev, minutesErr := l.minutesPair(ctx, userID, p, prev, contactListID)

	kpis := []KPI{
		countKPI("total_calls", "Total Calls", totalCur, totalPrev, totalErr),
		countKPI("outbound_calls", "Outbound Calls", outCur, outPrev, outErr),
		countKPI("inbound_calls", "Inbound Calls", inCur, inPrev, inErr),
		minutesKPI("total_minutes", "Total Minutes", minutesCur.Total, minutesPrev.Total, minutesErr),
		minutesKPI("outbound_minutes", "Outbound Minutes", minutesCur.Outbound, minutesPrev.Outbound, minutesErr),
		minutesKPI("inbound_minutes", "Inbound Minutes", minutesCur.Inbound, minutesPrev.Inbound, minutesErr),
		countKPI("positive_results", "Positive Results", posCur, posPrev, posErr),
	}

	conversion := KPI{Key: "conversion_rate", Label: "Conversion Rate"}
	if err := firstError(totalErr, soldErr); err != nil {
		conversion.Err = err.Error()
	} else {
		curRate := rate(soldCur, totalCur) * 100
		prevRate := rate(soldPrev, totalPrev) * 100
		conversion.Value = curRate
		conversion.Display = fmt.Sprintf("%.1f%%", curRate)
		conversion.Badge = ComparePeriods(curRate, prevRate, UnitPoints)
	}
	kpis = append(kpis, conversion)

	callsToLead := KPI{Key: "calls_to_lead", Label: "Calls to Lead"}
	if err := firstError(totalErr, posErr); err != nil {
		callsToLead.Err = err.Error()
	} else {
		cur := rate(totalCur, posCur)
		prevVal := rate(totalPrev, posPrev)
		callsToLead.Value = cur
		callsToLead.Display = fmt.Sprintf("%.1f", cur)
		callsToLead.Badge = ComparePeriods(cur, prevVal, UnitPercent)
	}
	kpis = append(kpis, callsToLead)

	return kpis
}

// Refresh runs Load under the sequence guard. The returned bool is false when
// the result arrived after a newer refresh was issued and was discarded.
func (l *Loader) Refresh(ctx context.Context, userID string, p Period, contactListID int64) (*Snapshot, bool) {
	l.mu.Lock()
	l.issued++
	seq := l.issued
	l.mu.Unlock()

	kpis := l.Load(ctx, userID, p, contactListID)
	snap := &Snapshot{
		Seq:           seq,
		UserID:        userID,
		From:          p.From,
		To:            p.To,
		ContactListID: contactListID,
		KPIs:          kpis,
		LoadedAt:      time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.issued {
		log.Printf("analytics refresh seq=%d superseded by seq=%d, discarding", seq, l.issued)
		return snap, false
	}
	l.latest = snap
	return snap, true
}

// Latest returns the most recent accepted snapshot, or nil before the first
// refresh completes.
func (l *Loader) Latest() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// pair issues the current and previous window query concurrently and waits
// for both before returning.
func (l *Loader) pair(ctx context.Context, cur, prev Period, fn func(context.Context, Period) (float64, error)) (float64, float64, error) {
	var curVal, prevVal float64
	var curErr, prevErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		curVal, curErr = fn(ctx, cur)
	}()
	go func() {
		defer wg.Done()
		prevVal, prevErr = fn(ctx, prev)
	}()
	wg.Wait()
	if err := firstError(curErr, prevErr); err != nil {
		return 0, 0, err
	}
	return curVal, prevVal, nil
}

// minutesPair resolves call minutes for both windows. Without a contact-list
// filter the numbers come from the usage collaborator (provider metering);
// with one they are summed from stored durations, since the usage API cannot
// scope to a list. The two paths are not equivalent and both are kept.
func (l *Loader) minutesPair(ctx context.Context, userID string, cur, prev Period, contactListID int64) (CallTime, CallTime, error) {
	if contactListID == 0 && l.usage != nil {
		var curTime, prevTime CallTime
		var curErr, prevErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			curTime, curErr = l.usage.CallTime(ctx, cur.From, cur.To)
		}()
		go func() {
			defer wg.Done()
			prevTime, prevErr = l.usage.CallTime(ctx, prev.From, prev.To)
		}()
		wg.Wait()
		if err := firstError(curErr, prevErr); err != nil {
			return CallTime{}, CallTime{}, err
		}
		return curTime, prevTime, nil
	}

	sum := func(ctx context.Context, w Period) (CallTime, error) {
		var ct CallTime
		var err error
		if ct.Total, err = l.stats.MinutesByDirection(ctx, userID, w, contactListID, ""); err != nil {
			return ct, err
		}
		if ct.Outbound, err = l.stats.MinutesByDirection(ctx, userID, w, contactListID, DirectionOutgoing); err != nil {
			return ct, err
		}
		if ct.Inbound, err = l.stats.MinutesByDirection(ctx, userID, w, contactListID, DirectionIncoming); err != nil {
			return ct, err
		}
		return ct, nil
	}

	var curTime, prevTime CallTime
	var curErr, prevErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		curTime, curErr = sum(ctx, cur)
	}()
	go func() {
		defer wg.Done()
		prevTime, prevErr = sum(ctx, prev)
	}()
	wg.Wait()
	if err := firstError(curErr, prevErr); err != nil {
		return CallTime{}, CallTime{}, err
	}
	return curTime, prevTime, nil
}

// rate divides numerator by denominator, reporting 0 instead of dividing by
// zero. This single rule applies to every ratio KPI.
func rate(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func countKPI(key, label string, cur, prev float64, err error) KPI {
	kpi := KPI{Key: key, Label: label}
	if err != nil {
		kpi.Err = err.Error()
		return kpi
	}
	kpi.Value = cur
	kpi.Display = fmt.Sprintf("%.0f", cur)
	kpi.Badge = ComparePeriods(cur, prev, UnitPercent)
	return kpi
}

func minutesKPI(key, label string, cur, prev float64, err error) KPI {
	kpi := KPI{Key: key, Label: label}
	if err != nil {
		kpi.Err = err.Error()
		return kpi
	}
	kpi.Value = cur
	kpi.Display = fmt.Sprintf("%.0f", cur)
	kpi.Badge = ComparePeriods(cur, prev, UnitPercent)
	return kpi
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
