package analytics

import "time"

// Period is a half-open window [From, To). The default window when callers
// supply no range is the last 30 days.
type Period struct {
	From time.Time
	To   time.Time
}

// DefaultDays is the window length applied when no date range is given.
const DefaultDays = 30

// DefaultPeriod returns the trailing 30-day window ending at now.
func DefaultPeriod(now time.Time) Period {
	return Period{From: now.AddDate(0, 0, -DefaultDays), To: now}
}

// Previous returns the immediately preceding window of identical duration.
func (p Period) Previous() Period {
	length := p.To.Sub(p.From)
	return Period{From: p.From.Add(-length), To: p.From}
}

// Days reports the whole number of days covered, used for usage API bounds.
func (p Period) Days() int {
	return int(p.To.Sub(p.From).Hours() / 24)
}
