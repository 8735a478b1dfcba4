package formatting

import (
	"fmt"
	"strings"
	"time"
)

// displayLayout is the fixed datetime presentation used across tables and
// CSV exports: abbreviated month, 2-digit day, 4-digit year, 12-hour clock.
const displayLayout = "Jan 02, 2006, 3:04 PM"

// timestampLayouts are the wire shapes FormatDateTime accepts, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatDuration renders whole seconds as "M:SS". Negative input clamps to
// "0:00"; minutes are unpadded, seconds zero-padded.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatDateTime renders a stored timestamp with the display layout. Input
// that fails to parse is returned unchanged so callers never lose the raw
// value, and the function never panics.
func FormatDateTime(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.Format(displayLayout)
		}
	}
	return value
}

// FormatTime renders a time.Time with the display layout.
func FormatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(displayLayout)
}

// SanitizeSearch strips characters that would break a LIKE pattern or the
// query surface (%, comma, parens) and collapses runs of whitespace.
func SanitizeSearch(q string) string {
	replacer := strings.NewReplacer("%", " ", ",", " ", "(", " ", ")", " ")
	return strings.Join(strings.Fields(replacer.Replace(q)), " ")
}

// DigitSearchPattern builds a LIKE pattern from the digits of q, so "1800"
// matches a phone stored as "+1 800-943-3043" but not "+1 801-943-3043".
// The digit sequence must match contiguously; callers compare the pattern
// against a punctuation-stripped phone column. Fewer than three digits
// yields "" (no pattern).
func DigitSearchPattern(q string) string {
	var digits []rune
	for _, r := range q {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 3 {
		return ""
	}
	return "%" + string(digits) + "%"
}
