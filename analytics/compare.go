package analytics

import (
	"fmt"
	"math"
)

// Unit selects how a period-over-period badge is expressed.
type Unit string

const (
	// UnitPercent is a relative change against the previous value.
	UnitPercent Unit = "%"
	// UnitPoints is an absolute difference, used for metrics that are
	// already ratios (e.g. conversion rate).
	UnitPoints Unit = "pp"
)

// ComparePeriods renders the signed change badge between two period values.
// NaN and infinite inputs are coerced to 0 before the comparison so a bad
// upstream value can never leak into the formatted string. A zero previous
// value yields "+100%" when the current value is positive and "0%" otherwise.
func ComparePeriods(current, previous float64, unit Unit) string {
	current = sanitize(current)
	previous = sanitize(previous)

	if previous == 0 {
		if current > 0 {
			return "+100%"
		}
		return "0%"
	}

	var delta float64
	switch unit {
	case UnitPoints:
		delta = current - previous
	default:
		delta = (current - previous) / previous * 100
	}
	return fmt.Sprintf("%+.1f%s", delta, unit)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
